package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

type SubjectStore interface {
	GetAll(ctx context.Context) ([]model.Subject, error)
}

type LecturerStore interface {
	GetAll(ctx context.Context) ([]model.Lecturer, error)
}

type LocationStore interface {
	GetAll(ctx context.Context) ([]model.Location, error)
}

type HolidayStore interface {
	GetInRange(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
}

type TeamStore interface {
	GetAll(ctx context.Context) ([]model.Team, error)
}

type CurriculumStore interface {
	GetAll(ctx context.Context) ([]model.Curriculum, error)
}

type CourseStore interface {
	GetByID(ctx context.Context, id int64) (*model.Course, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.CourseStatus) (bool, error)
}

type SessionStore interface {
	GetByCourse(ctx context.Context, courseID int64) ([]model.Session, error)
	GetCommitted(ctx context.Context, from, to time.Time, excludeCourseID int64) ([]model.Session, error)
	SaveSkeletons(ctx context.Context, sessions []model.Session) (int64, error)
	SaveAssignments(ctx context.Context, sessions []model.Session) (int64, error)
	DeleteByCourse(ctx context.Context, courseID int64) (int64, error)
	CoursesWithUnresourced(ctx context.Context) ([]int64, error)
}

type RunStore interface {
	Create(ctx context.Context, run *model.ScheduleRun, skips []model.RunSkip) error
}

// Stores groups the persistence the schedule service needs. The Postgres
// repositories satisfy every interface.
type Stores struct {
	Subjects  SubjectStore
	Lecturers LecturerStore
	Locations LocationStore
	Holidays  HolidayStore
	Teams     TeamStore
	Curricula CurriculumStore
	Courses   CourseStore
	Sessions  SessionStore
	Runs      RunStore
}
