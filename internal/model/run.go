package model

import (
	"time"

	"github.com/google/uuid"
)

type RunKind string

const (
	RunKindGenerate RunKind = "generate"
	RunKindAssign   RunKind = "assign"
)

// ScheduleRun is the persisted summary of one generation or assignment run.
type ScheduleRun struct {
	ID         uuid.UUID `json:"id"`
	CourseID   int64     `json:"course_id"`
	Kind       RunKind   `json:"kind"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunSkip is a session an assignment run left unresourced.
type RunSkip struct {
	RunID     uuid.UUID `json:"run_id"`
	TeamID    int64     `json:"team_id"`
	Date      time.Time `json:"date"`
	Period    Period    `json:"session"`
	SubjectID int64     `json:"subject_id"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail"`
}
