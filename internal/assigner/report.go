package assigner

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// SkipReasonCode explains why a session was left without resources.
type SkipReasonCode string

const (
	SkipReasonNoLecturer SkipReasonCode = "NO_LECTURER"
	SkipReasonNoLocation SkipReasonCode = "NO_LOCATION"
	SkipReasonBoth       SkipReasonCode = "BOTH"
)

// Skip is a session the run could not resource.
type Skip struct {
	Key       model.SessionKey
	Week      int
	SubjectID int64
	Reason    SkipReasonCode
	Detail    string
}

// Message renders the skip for people reading a run report.
func (s Skip) Message() string {
	var what string
	switch s.Reason {
	case SkipReasonNoLecturer:
		what = "no lecturer available"
	case SkipReasonNoLocation:
		what = "no location available"
	case SkipReasonBoth:
		what = "no lecturer and no location available"
	default:
		what = string(s.Reason)
	}
	msg := fmt.Sprintf("%s, subject %d: %s", s.Key, s.SubjectID, what)
	if s.Detail != "" {
		msg += " (" + s.Detail + ")"
	}
	return msg
}

// Report summarises one assignment run.
type Report struct {
	RunID uuid.UUID
	// Processed is the number of sessions resourced by this run.
	Processed int
	// AlreadyResourced sessions were left untouched.
	AlreadyResourced int
	// Partial sessions carry only one of the two resources and were left
	// untouched.
	Partial  int
	Skipped  []Skip
	Assigned []model.Session
}

// Summary returns the resourced and skipped counts on one line.
func (r *Report) Summary() string {
	return fmt.Sprintf("run %s: %d resourced, %d skipped, %d already resourced",
		r.RunID, r.Processed, len(r.Skipped), r.AlreadyResourced)
}

// SkipsByReason counts skips per reason code.
func (r *Report) SkipsByReason() map[SkipReasonCode]int {
	out := make(map[SkipReasonCode]int, 3)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}
