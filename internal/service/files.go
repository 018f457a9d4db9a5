package service

import (
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/csvio"
	"github.com/Freeeeeet/training_scheduler/internal/export"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// FileResult describes a file based planning run.
type FileResult struct {
	Plan   *Plan
	Report *assigner.Report
}

// PlanFiles runs generation and assignment for one course without a
// database. Reference data comes from ref, sessions already in store are
// resumed, and the resources held by other teams in store stay booked. The
// merged schedule is written back to store. When xlsx is not
// nil the timetable workbook is written to it as well.
//
// Teams that cannot be sequenced are reported in the plan; the sessions of
// the other teams are still resourced and saved.
func (p *Planner) PlanFiles(ref *csvio.Reference, courseID int64, store *csvio.Store, xlsx io.Writer) (*FileResult, error) {
	course, ok := ref.Course(courseID)
	if !ok {
		return nil, model.Invalid(model.Ref("course", courseID), "not found in courses.csv")
	}
	cat, err := catalog.New(ref.Input)
	if err != nil {
		return nil, err
	}
	teams := CourseTeams(cat, courseID)
	if len(teams) == 0 {
		return nil, model.Invalid(model.Ref("course", courseID), "course has no teams")
	}

	var existing []model.Session
	for _, id := range teams {
		stored, err := store.LoadTeam(id)
		if err != nil {
			return nil, fmt.Errorf("load stored sessions: %w", err)
		}
		existing = append(existing, stored...)
	}

	plan := p.Skeletons(cat, course, teams, existing)
	all := append(slices.Clone(existing), plan.Sessions...)
	slices.SortStableFunc(all, model.CompareSessions)

	committed, err := otherTeams(store, course, teams)
	if err != nil {
		return nil, err
	}

	report, err := p.Resource(cat, all, committed)
	if err != nil {
		return nil, err
	}
	if err := store.Save(all); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	if xlsx != nil {
		if err := export.Timetable(xlsx, course, cat, all); err != nil {
			return nil, fmt.Errorf("export timetable: %w", err)
		}
	}

	p.logger.Info("File plan written",
		zap.Int64("course_id", courseID),
		zap.Int("sessions", len(all)),
		zap.Int("committed", len(committed)),
		zap.String("summary", report.Summary()))
	return &FileResult{Plan: plan, Report: report}, nil
}

// ResetFiles removes the stored weeks of every team of a course so the
// course can be planned from scratch. It returns the number of week files
// removed.
func (p *Planner) ResetFiles(ref *csvio.Reference, courseID int64, store *csvio.Store) (int, error) {
	if _, ok := ref.Course(courseID); !ok {
		return 0, model.Invalid(model.Ref("course", courseID), "not found in courses.csv")
	}
	removed := 0
	for _, t := range ref.Input.Teams {
		if t.CourseID != courseID {
			continue
		}
		n, err := store.RemoveTeam(t.ID)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("reset team %d: %w", t.ID, err)
		}
	}
	p.logger.Info("File schedule reset", zap.Int64("course_id", courseID), zap.Int("weeks", removed))
	return removed, nil
}

// otherTeams returns the resourced sessions stored for teams outside the
// course within the ISO weeks the course touches.
func otherTeams(store *csvio.Store, course model.Course, courseTeams []int64) ([]model.Session, error) {
	stored, err := store.Teams()
	if err != nil {
		return nil, fmt.Errorf("list stored teams: %w", err)
	}
	from, to := calendar.ISOWeekSpan(course.StartDate, course.EndDate)

	var out []model.Session
	for _, id := range stored {
		if slices.Contains(courseTeams, id) {
			continue
		}
		sessions, err := store.LoadTeam(id)
		if err != nil {
			return nil, fmt.Errorf("load team %d: %w", id, err)
		}
		for _, s := range sessions {
			if s.IsSkeleton() || s.Date.Before(from) || s.Date.After(to) {
				continue
			}
			out = append(out, s)
		}
	}
	return out, nil
}
