package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

type listStore[T any] struct {
	items []T
	err   error
}

func (s listStore[T]) GetAll(context.Context) ([]T, error) {
	return slices.Clone(s.items), s.err
}

type holidayStore struct{ items []model.Holiday }

func (s holidayStore) GetInRange(_ context.Context, from, to time.Time) ([]model.Holiday, error) {
	var out []model.Holiday
	for _, h := range s.items {
		if !h.Date.Before(model.DateOnly(from)) && !h.Date.After(model.DateOnly(to)) {
			out = append(out, h)
		}
	}
	return out, nil
}

type courseStore struct {
	mu      sync.Mutex
	courses map[int64]*model.Course
}

func (s *courseStore) GetByID(_ context.Context, id int64) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *courseStore) UpdateStatus(_ context.Context, id int64, from, to model.CourseStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (s *courseStore) status(id int64) model.CourseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courses[id].Status
}

// sessionStore keeps sessions in memory with the same conflict rules as the
// sessions table.
type sessionStore struct {
	mu         sync.Mutex
	sessions   []model.Session
	teamCourse map[int64]int64
}

func (s *sessionStore) GetByCourse(_ context.Context, courseID int64) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if s.teamCourse[sess.TeamID] == courseID {
			out = append(out, sess)
		}
	}
	slices.SortStableFunc(out, model.CompareSessions)
	return out, nil
}

func (s *sessionStore) GetCommitted(_ context.Context, from, to time.Time, excludeCourseID int64) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if s.teamCourse[sess.TeamID] == excludeCourseID || sess.IsSkeleton() {
			continue
		}
		if sess.Date.Before(model.DateOnly(from)) || sess.Date.After(model.DateOnly(to)) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *sessionStore) SaveSkeletons(_ context.Context, sessions []model.Session) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range sessions {
		if s.find(sess.Key()) >= 0 {
			continue
		}
		s.sessions = append(s.sessions, sess)
		n++
	}
	return n, nil
}

func (s *sessionStore) SaveAssignments(_ context.Context, sessions []model.Session) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range sessions {
		i := s.find(sess.Key())
		if i < 0 || !s.sessions[i].IsSkeleton() {
			continue
		}
		s.sessions[i].LecturerID = sess.LecturerID
		s.sessions[i].LocationID = sess.LocationID
		n++
	}
	return n, nil
}

func (s *sessionStore) DeleteByCourse(_ context.Context, courseID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.sessions)
	s.sessions = slices.DeleteFunc(s.sessions, func(sess model.Session) bool {
		return s.teamCourse[sess.TeamID] == courseID
	})
	return int64(before - len(s.sessions)), nil
}

func (s *sessionStore) CoursesWithUnresourced(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, sess := range s.sessions {
		id := s.teamCourse[sess.TeamID]
		if !sess.IsResourced() && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *sessionStore) find(key model.SessionKey) int {
	for i := range s.sessions {
		if s.sessions[i].Key() == key {
			return i
		}
	}
	return -1
}

type runStore struct {
	mu    sync.Mutex
	runs  []model.ScheduleRun
	skips []model.RunSkip
}

func (s *runStore) Create(_ context.Context, run *model.ScheduleRun, skips []model.RunSkip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	s.skips = append(s.skips, skips...)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*assigner.Report
}

func (n *recordingNotifier) RunFinished(_ context.Context, _ model.Course, r *assigner.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}
