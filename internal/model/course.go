package model

import "time"

type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "Draft"     // teams exist, nothing scheduled yet
	CourseStatusScheduled CourseStatus = "Scheduled" // skeleton sessions saved
	CourseStatusDone      CourseStatus = "Done"      // lecturers and locations assigned
)

// Valid reports whether s is a known course status.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusDraft, CourseStatusScheduled, CourseStatusDone:
		return true
	}
	return false
}

// CanTransition reports whether a course may move from s to next.
// Regenerating or reassigning keeps the current status, and a reset takes
// any course back to Draft.
func (s CourseStatus) CanTransition(next CourseStatus) bool {
	if s == next {
		return true
	}
	if next == CourseStatusDraft {
		return s.Valid()
	}
	switch s {
	case CourseStatusDraft:
		return next == CourseStatusScheduled
	case CourseStatusScheduled:
		return next == CourseStatusDone
	}
	return false
}

type Course struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    CourseStatus `json:"status"`
}
