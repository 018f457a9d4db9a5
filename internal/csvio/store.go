package csvio

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// Bucket separates weeks still missing resources from finished ones.
type Bucket string

const (
	BucketScheduled Bucket = "scheduled"
	BucketDone      Bucket = "done"
)

// Store keeps sessions under dir/team{id}/{bucket}/week_{monday}_{last}.csv.
// A team week lives in the done bucket once every session in it is
// resourced, and in the scheduled bucket otherwise.
type Store struct {
	dir      string
	weekDays int
	logger   *zap.Logger
}

// NewStore returns a store rooted at dir. weekDays sets the last day named in
// week file names and defaults to 6, Monday to Saturday.
func NewStore(dir string, weekDays int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if weekDays <= 0 || weekDays > 7 {
		weekDays = 6
	}
	return &Store{dir: dir, weekDays: weekDays, logger: logger}
}

type weekBucket struct {
	teamID int64
	monday time.Time
}

// Save writes the given sessions, replacing the stored weeks they touch.
// Weeks not present in sessions are kept as they are.
func (s *Store) Save(sessions []model.Session) error {
	groups := make(map[weekBucket][]model.Session)
	for _, sess := range sessions {
		mon, _ := calendar.WeekBounds(sess.Date)
		key := weekBucket{teamID: sess.TeamID, monday: mon}
		groups[key] = append(groups[key], sess)
	}

	keys := make([]weekBucket, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b weekBucket) int {
		if c := cmp.Compare(a.teamID, b.teamID); c != 0 {
			return c
		}
		return a.monday.Compare(b.monday)
	})

	for _, k := range keys {
		week := groups[k]
		slices.SortStableFunc(week, model.CompareSessions)

		bucket := BucketDone
		for i := range week {
			if !week[i].IsResourced() {
				bucket = BucketScheduled
				break
			}
		}
		if err := s.writeWeek(k, bucket, week); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeWeek(k weekBucket, bucket Bucket, week []model.Session) error {
	path := s.path(k.teamID, bucket, k.monday)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	rows := make([]*SessionCSV, 0, len(week))
	for i := range week {
		rows = append(rows, sessionRow(&week[i]))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	// the week may have moved between buckets
	other := BucketScheduled
	if bucket == BucketScheduled {
		other = BucketDone
	}
	if err := os.Remove(s.path(k.teamID, other, k.monday)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale week: %w", err)
	}

	s.logger.Debug("Week saved",
		zap.Int64("team_id", k.teamID),
		zap.String("bucket", string(bucket)),
		zap.String("path", path),
		zap.Int("sessions", len(week)))
	return nil
}

// LoadTeam returns the stored sessions of a team from both buckets in slot
// order.
func (s *Store) LoadTeam(teamID int64) ([]model.Session, error) {
	var out []model.Session
	for _, bucket := range []Bucket{BucketScheduled, BucketDone} {
		dir := filepath.Join(s.dir, teamDir(teamID), string(bucket))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
				continue
			}
			week, err := readWeek(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			out = append(out, week...)
		}
	}
	slices.SortStableFunc(out, model.CompareSessions)
	return out, nil
}

// Teams lists the team ids that have stored weeks.
func (s *Store) Teams() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}
	var ids []int64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "team") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), "team"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Weeks lists the stored week files of a team in one bucket.
func (s *Store) Weeks(teamID int64, bucket Bucket) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, teamDir(teamID), string(bucket), "week_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	slices.Sort(matches)
	return matches, nil
}

// RemoveTeam deletes the stored weeks of a team from both buckets and
// returns how many week files were removed.
func (s *Store) RemoveTeam(teamID int64) (int, error) {
	removed := 0
	for _, bucket := range []Bucket{BucketScheduled, BucketDone} {
		weeks, err := s.Weeks(teamID, bucket)
		if err != nil {
			return removed, err
		}
		for _, path := range weeks {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, fmt.Errorf("remove %s: %w", path, err)
			}
			removed++
		}
	}
	s.logger.Debug("Team weeks removed", zap.Int64("team_id", teamID), zap.Int("weeks", removed))
	return removed, nil
}

func readWeek(path string) ([]model.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []*SessionCSV
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]model.Session, 0, len(rows))
	for i, row := range rows {
		sess, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) path(teamID int64, bucket Bucket, monday time.Time) string {
	last := monday.AddDate(0, 0, s.weekDays-1)
	name := fmt.Sprintf("week_%s_%s.csv", model.DateKey(monday), model.DateKey(last))
	return filepath.Join(s.dir, teamDir(teamID), string(bucket), name)
}

func teamDir(teamID int64) string {
	return "team" + strconv.FormatInt(teamID, 10)
}
