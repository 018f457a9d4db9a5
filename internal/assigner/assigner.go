// Package assigner gives skeleton sessions a lecturer and a location.
//
// Sessions are processed by date, then period, then team id. For each one
// the least used qualified lecturer and suitable location of the current run
// are picked, ties going to the lowest id. A lecturer is never booked twice
// in one slot nor beyond the weekly cap within an ISO week, and a location is
// never booked twice in one slot. Sessions that cannot get both resources are
// left untouched and reported as skips.
package assigner

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

type Assigner struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func New(cat *catalog.Catalog, logger *zap.Logger) *Assigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assigner{catalog: cat, logger: logger}
}

// Assign resources the sessions of batch in place. committed holds sessions
// outside the batch that already use resources, such as other courses in the
// same weeks; entries sharing a key with a batch session are ignored.
//
// An invalid batch aborts the run before anything is changed. Sessions that
// cannot be resourced never abort it.
func (a *Assigner) Assign(batch []model.Session, committed []model.Session) (*Report, error) {
	if err := a.validateBatch(batch); err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.New()}
	log := a.logger.With(zap.String("run_id", report.RunID.String()))

	inBatch := make(map[model.SessionKey]struct{}, len(batch))
	for i := range batch {
		inBatch[batch[i].Key()] = struct{}{}
	}

	led := newLedger()
	for i := range committed {
		if _, ok := inBatch[committed[i].Key()]; ok {
			continue
		}
		led.commit(&committed[i])
	}
	for i := range batch {
		led.commit(&batch[i])
	}

	for _, i := range processingOrder(batch) {
		s := &batch[i]
		switch {
		case s.IsResourced():
			report.AlreadyResourced++
			continue
		case !s.IsSkeleton():
			report.Partial++
			log.Debug("partially resourced session left untouched", zap.Stringer("session", s.Key()))
			continue
		}

		lecturerID, lecturerDetail := a.pickLecturer(led, s)
		locationID, locationDetail := a.pickLocation(led, s)

		if lecturerID == 0 || locationID == 0 {
			skip := Skip{Key: s.Key(), Week: s.Week, SubjectID: s.SubjectID}
			switch {
			case lecturerID == 0 && locationID == 0:
				skip.Reason = SkipReasonBoth
				skip.Detail = lecturerDetail + "; " + locationDetail
			case lecturerID == 0:
				skip.Reason = SkipReasonNoLecturer
				skip.Detail = lecturerDetail
			default:
				skip.Reason = SkipReasonNoLocation
				skip.Detail = locationDetail
			}
			report.Skipped = append(report.Skipped, skip)
			log.Warn("session skipped",
				zap.Stringer("session", s.Key()),
				zap.Int64("subject_id", s.SubjectID),
				zap.String("reason", string(skip.Reason)),
				zap.String("detail", skip.Detail),
			)
			continue
		}

		led.take(s, lecturerID, locationID)
		s.LecturerID = &lecturerID
		s.LocationID = &locationID
		report.Processed++
		report.Assigned = append(report.Assigned, *s)

		log.Debug("session resourced",
			zap.Stringer("session", s.Key()),
			zap.Int64("subject_id", s.SubjectID),
			zap.Int64("lecturer_id", lecturerID),
			zap.Int64("location_id", locationID),
		)
	}

	log.Info("assignment run finished",
		zap.Int("batch", len(batch)),
		zap.Int("committed", len(committed)),
		zap.Int("processed", report.Processed),
		zap.Int("already_resourced", report.AlreadyResourced),
		zap.Int("partial", report.Partial),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// pickLecturer returns the chosen lecturer id, or 0 and a reason.
func (a *Assigner) pickLecturer(led *ledger, s *model.Session) (int64, string) {
	slot := s.Slot()
	week := calendar.ISOWeek(s.Date)

	var (
		best                    int64
		qualified, busy, capped int
	)
	for _, l := range a.catalog.Lecturers() {
		if !a.catalog.Qualified(l.ID, s.SubjectID) {
			continue
		}
		qualified++
		if !led.lecturerFree(slot, l.ID) {
			busy++
			continue
		}
		if led.weekCount(l.ID, week) >= l.MaxSessionsPerWeek {
			capped++
			continue
		}
		if best == 0 || led.lecturerRun[l.ID] < led.lecturerRun[best] {
			best = l.ID
		}
	}
	if best != 0 {
		return best, ""
	}
	if qualified == 0 {
		return 0, fmt.Sprintf("no lecturer specializes in subject %d", s.SubjectID)
	}
	return 0, fmt.Sprintf("%d qualified lecturers: %d busy in slot, %d at weekly cap in %s", qualified, busy, capped, week)
}

// pickLocation returns the chosen location id, or 0 and a reason.
func (a *Assigner) pickLocation(led *ledger, s *model.Session) (int64, string) {
	slot := s.Slot()

	var (
		best            int64
		suitable, taken int
	)
	for _, id := range a.catalog.LocationIDs() {
		if !a.catalog.Suitable(id, s.SubjectID) {
			continue
		}
		suitable++
		if !led.locationFree(slot, id) {
			taken++
			continue
		}
		if best == 0 || led.locationRun[id] < led.locationRun[best] {
			best = id
		}
	}
	if best != 0 {
		return best, ""
	}
	if suitable == 0 {
		return 0, fmt.Sprintf("no location hosts subject %d", s.SubjectID)
	}
	return 0, fmt.Sprintf("%d suitable locations, all booked in slot", taken)
}

func (a *Assigner) validateBatch(batch []model.Session) error {
	seen := make(map[model.SessionKey]struct{}, len(batch))
	for i := range batch {
		s := &batch[i]
		if err := a.catalog.ValidateSession(s); err != nil {
			return err
		}
		key := s.Key()
		if _, dup := seen[key]; dup {
			return model.Invalid(key.String(), "session appears twice in batch")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// processingOrder returns batch indexes ordered by date, period, team id and
// subject id.
func processingOrder(batch []model.Session) []int {
	order := make([]int, len(batch))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		a, b := &batch[x], &batch[y]
		if c := model.DateOnly(a.Date).Compare(model.DateOnly(b.Date)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Period.Order(), b.Period.Order()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TeamID, b.TeamID); c != 0 {
			return c
		}
		return cmp.Compare(a.SubjectID, b.SubjectID)
	})
	return order
}
