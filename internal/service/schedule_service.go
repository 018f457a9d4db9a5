package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/export"
	"github.com/Freeeeeet/training_scheduler/internal/lock"
	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/notify"
	"github.com/Freeeeeet/training_scheduler/internal/sequencer"
)

// releaseTimeout bounds lock release after the run context is gone.
const releaseTimeout = 5 * time.Second

type ScheduleService struct {
	stores   Stores
	planner  *Planner
	locker   lock.Locker
	notifier notify.Notifier
	group    singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

func NewScheduleService(
	stores Stores,
	planner *Planner,
	locker lock.Locker,
	notifier notify.Notifier,
	logger *zap.Logger,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ScheduleService{
		stores:   stores,
		planner:  planner,
		locker:   locker,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// GenerateResult describes one skeleton generation run.
type GenerateResult struct {
	RunID    uuid.UUID
	Inserted int64
	Reused   int
	Failed   []sequencer.Outcome
}

// Generate lays out skeleton sessions for every team of a course and stores
// the ones not stored yet. Teams that cannot be sequenced are reported in
// the result and in the returned error; the other teams are still saved.
// The course moves to Scheduled only when every team succeeded.
func (s *ScheduleService) Generate(ctx context.Context, courseID int64) (*GenerateResult, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status == model.CourseStatusDone {
		return nil, model.Invalid(model.Ref("course", courseID), "course is already %s", course.Status)
	}

	release, err := s.lock(ctx, course)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, release)

	started := s.now()
	cat, err := s.loadCatalog(ctx, course)
	if err != nil {
		return nil, err
	}
	teams := CourseTeams(cat, course.ID)
	if len(teams) == 0 {
		return nil, model.Invalid(model.Ref("course", courseID), "course has no teams")
	}

	existing, err := s.stores.Sessions.GetByCourse(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("get course sessions: %w", err)
	}

	plan := s.planner.Skeletons(cat, *course, teams, existing)
	inserted, err := s.stores.Sessions.SaveSkeletons(ctx, plan.Sessions)
	if err != nil {
		return nil, fmt.Errorf("save skeletons: %w", err)
	}

	res := &GenerateResult{RunID: uuid.New(), Inserted: inserted, Reused: plan.Reused, Failed: plan.Failed}
	run := &model.ScheduleRun{
		ID:         res.RunID,
		CourseID:   course.ID,
		Kind:       model.RunKindGenerate,
		Processed:  int(inserted),
		Skipped:    len(plan.Failed),
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if err := s.stores.Runs.Create(ctx, run, nil); err != nil {
		return nil, fmt.Errorf("record generate run: %w", err)
	}

	planErr := plan.Err()
	if planErr == nil {
		if err := s.transition(ctx, course, model.CourseStatusScheduled); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Skeletons generated",
		zap.Int64("course_id", course.ID),
		zap.String("run_id", res.RunID.String()),
		zap.Int64("inserted", inserted),
		zap.Int("reused", plan.Reused),
		zap.Int("failed_teams", len(plan.Failed)))
	return res, planErr
}

// Assign resources the unresourced sessions of a course. Concurrent calls
// for the same course share one run.
func (s *ScheduleService) Assign(ctx context.Context, courseID int64) (*assigner.Report, error) {
	v, err, shared := s.group.Do(strconv.FormatInt(courseID, 10), func() (any, error) {
		return s.assign(ctx, courseID)
	})
	if shared {
		s.logger.Debug("Assignment run shared", zap.Int64("course_id", courseID))
	}
	if err != nil {
		return nil, err
	}
	return v.(*assigner.Report), nil
}

func (s *ScheduleService) assign(ctx context.Context, courseID int64) (*assigner.Report, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status == model.CourseStatusDraft {
		return nil, model.Invalid(model.Ref("course", courseID), "course has no generated sessions yet")
	}

	release, err := s.lock(ctx, course)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, release)

	started := s.now()
	cat, err := s.loadCatalog(ctx, course)
	if err != nil {
		return nil, err
	}

	var batch, committed []model.Session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.stores.Sessions.GetByCourse(gctx, course.ID)
		if err != nil {
			return fmt.Errorf("get course sessions: %w", err)
		}
		batch = v
		return nil
	})
	g.Go(func() error {
		v, err := s.committed(gctx, course)
		if err != nil {
			return err
		}
		committed = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := s.planner.Resource(cat, batch, committed)
	if err != nil {
		return nil, err
	}

	updated, err := s.stores.Sessions.SaveAssignments(ctx, report.Assigned)
	if err != nil {
		return nil, fmt.Errorf("save assignments: %w", err)
	}
	if updated != int64(len(report.Assigned)) {
		s.logger.Warn("Some assignments were not saved, sessions changed during the run",
			zap.Int64("course_id", course.ID),
			zap.Int("assigned", len(report.Assigned)),
			zap.Int64("updated", updated))
	}

	run := &model.ScheduleRun{
		ID:         report.RunID,
		CourseID:   course.ID,
		Kind:       model.RunKindAssign,
		Processed:  report.Processed,
		Skipped:    len(report.Skipped),
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if err := s.stores.Runs.Create(ctx, run, runSkips(report)); err != nil {
		return nil, fmt.Errorf("record assign run: %w", err)
	}

	if report.Processed > 0 {
		if err := s.transition(ctx, course, model.CourseStatusDone); err != nil {
			return nil, err
		}
	}

	if err := s.notifier.RunFinished(ctx, *course, report); err != nil {
		s.logger.Warn("Run report not delivered", zap.Int64("course_id", course.ID), zap.Error(err))
	}

	s.logger.Info("Course assigned",
		zap.Int64("course_id", course.ID),
		zap.String("summary", report.Summary()))
	return report, nil
}

// RetryUnresourced re-runs assignment for every scheduled course that still
// has sessions without resources. A failing course does not stop the rest.
// It returns the number of courses that ran.
func (s *ScheduleService) RetryUnresourced(ctx context.Context) (int, error) {
	ids, err := s.stores.Sessions.CoursesWithUnresourced(ctx)
	if err != nil {
		return 0, fmt.Errorf("find courses to retry: %w", err)
	}

	var (
		ran  int
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		course, err := s.course(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if course.Status == model.CourseStatusDraft {
			continue
		}
		report, err := s.Assign(ctx, id)
		if err != nil {
			s.logger.Error("Retry failed", zap.Int64("course_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("course %d: %w", id, err))
			continue
		}
		ran++
		s.logger.Info("Retry finished",
			zap.Int64("course_id", id),
			zap.Int("resourced", report.Processed),
			zap.Int("still_skipped", len(report.Skipped)))
	}
	return ran, errors.Join(errs...)
}

// Reset deletes every stored session of a course and moves it back to Draft
// so it can be generated again. It returns the number of sessions removed.
func (s *ScheduleService) Reset(ctx context.Context, courseID int64) (int64, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return 0, err
	}

	release, err := s.lock(ctx, course)
	if err != nil {
		return 0, err
	}
	defer s.release(ctx, release)

	deleted, err := s.stores.Sessions.DeleteByCourse(ctx, course.ID)
	if err != nil {
		return 0, fmt.Errorf("delete course sessions: %w", err)
	}
	if err := s.transition(ctx, course, model.CourseStatusDraft); err != nil {
		return deleted, err
	}

	s.logger.Info("Course reset", zap.Int64("course_id", course.ID), zap.Int64("deleted", deleted))
	return deleted, nil
}

// Export writes the course timetable workbook to w.
func (s *ScheduleService) Export(ctx context.Context, courseID int64, w io.Writer) error {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return err
	}
	cat, err := s.loadCatalog(ctx, course)
	if err != nil {
		return err
	}
	sessions, err := s.stores.Sessions.GetByCourse(ctx, course.ID)
	if err != nil {
		return fmt.Errorf("get course sessions: %w", err)
	}
	if err := export.Timetable(w, *course, cat, sessions); err != nil {
		return fmt.Errorf("export timetable: %w", err)
	}
	return nil
}

// Validate checks the stored sessions of a course, together with the other
// courses sharing its ISO weeks, against the booking rules.
func (s *ScheduleService) Validate(ctx context.Context, courseID int64) ([]assigner.Violation, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	cat, err := s.loadCatalog(ctx, course)
	if err != nil {
		return nil, err
	}
	sessions, err := s.stores.Sessions.GetByCourse(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("get course sessions: %w", err)
	}
	committed, err := s.committed(ctx, course)
	if err != nil {
		return nil, err
	}
	return assigner.Validate(append(sessions, committed...), cat), nil
}

// committed loads the resourced sessions of other courses over the whole ISO
// weeks the course touches, matching the locked weeks and the weekly cap.
func (s *ScheduleService) committed(ctx context.Context, course *model.Course) ([]model.Session, error) {
	from, to := calendar.ISOWeekSpan(course.StartDate, course.EndDate)
	sessions, err := s.stores.Sessions.GetCommitted(ctx, from, to, course.ID)
	if err != nil {
		return nil, fmt.Errorf("get committed sessions: %w", err)
	}
	return sessions, nil
}

func (s *ScheduleService) course(ctx context.Context, id int64) (*model.Course, error) {
	course, err := s.stores.Courses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, model.Invalid(model.Ref("course", id), "not found")
	}
	return course, nil
}

// loadCatalog reads the reference data in parallel and validates it.
func (s *ScheduleService) loadCatalog(ctx context.Context, course *model.Course) (*catalog.Catalog, error) {
	var in catalog.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.stores.Subjects.GetAll(gctx)
		if err != nil {
			return fmt.Errorf("load subjects: %w", err)
		}
		in.Subjects = v
		return nil
	})
	g.Go(func() error {
		v, err := s.stores.Lecturers.GetAll(gctx)
		if err != nil {
			return fmt.Errorf("load lecturers: %w", err)
		}
		in.Lecturers = v
		return nil
	})
	g.Go(func() error {
		v, err := s.stores.Locations.GetAll(gctx)
		if err != nil {
			return fmt.Errorf("load locations: %w", err)
		}
		in.Locations = v
		return nil
	})
	g.Go(func() error {
		v, err := s.stores.Holidays.GetInRange(gctx, course.StartDate, course.EndDate)
		if err != nil {
			return fmt.Errorf("load holidays: %w", err)
		}
		in.Holidays = v
		return nil
	})
	g.Go(func() error {
		v, err := s.stores.Teams.GetAll(gctx)
		if err != nil {
			return fmt.Errorf("load teams: %w", err)
		}
		in.Teams = v
		return nil
	})
	g.Go(func() error {
		v, err := s.stores.Curricula.GetAll(gctx)
		if err != nil {
			return fmt.Errorf("load curricula: %w", err)
		}
		in.Curricula = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return catalog.New(in)
}

func (s *ScheduleService) lock(ctx context.Context, course *model.Course) (lock.ReleaseFunc, error) {
	keys := lock.WeekKeys(course.StartDate, course.EndDate)
	release, err := lock.AcquireAll(ctx, s.locker, keys)
	if err != nil {
		return nil, fmt.Errorf("lock course weeks: %w", err)
	}
	s.logger.Debug("Course weeks locked", zap.Int64("course_id", course.ID), zap.Strings("keys", keys))
	return release, nil
}

func (s *ScheduleService) release(ctx context.Context, release lock.ReleaseFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := release(ctx); err != nil {
		s.logger.Warn("Failed to release course lock", zap.Error(err))
	}
}

// transition moves the course to next unless it is already there.
func (s *ScheduleService) transition(ctx context.Context, course *model.Course, next model.CourseStatus) error {
	if course.Status == next {
		return nil
	}
	if !course.Status.CanTransition(next) {
		return model.Invalid(model.Ref("course", course.ID), "cannot move from %s to %s", course.Status, next)
	}
	ok, err := s.stores.Courses.UpdateStatus(ctx, course.ID, course.Status, next)
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	if !ok {
		s.logger.Warn("Course status changed concurrently",
			zap.Int64("course_id", course.ID),
			zap.String("expected", string(course.Status)))
		return nil
	}
	s.logger.Info("Course status updated",
		zap.Int64("course_id", course.ID),
		zap.String("from", string(course.Status)),
		zap.String("to", string(next)))
	course.Status = next
	return nil
}

func runSkips(report *assigner.Report) []model.RunSkip {
	skips := make([]model.RunSkip, 0, len(report.Skipped))
	for _, sk := range report.Skipped {
		date, _ := model.ParseDate(sk.Key.Date)
		skips = append(skips, model.RunSkip{
			RunID:     report.RunID,
			TeamID:    sk.Key.TeamID,
			Date:      date,
			Period:    sk.Key.Period,
			SubjectID: sk.SubjectID,
			Reason:    string(sk.Reason),
			Detail:    sk.Detail,
		})
	}
	return skips
}
