package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConstraintUnsatisfiable matches errors raised when a team's
	// curriculum cannot be laid out on the available slots.
	ErrConstraintUnsatisfiable = errors.New("constraint unsatisfiable")
	// ErrInputInvalid matches errors raised for malformed or missing
	// reference data.
	ErrInputInvalid = errors.New("input invalid")
)

type ErrorKind string

const (
	KindConstraintUnsatisfiable ErrorKind = "ConstraintUnsatisfiable"
	KindInputInvalid            ErrorKind = "InputInvalid"
)

// ScheduleError is a fatal scheduling error. The zero value of a scope
// field means the scope does not apply.
type ScheduleError struct {
	Kind      ErrorKind
	TeamID    int64
	Week      int
	SubjectID int64
	Ref       string // offending identifier, e.g. "lecturer 7"
	Detail    string
}

func (e *ScheduleError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindConstraintUnsatisfiable:
		b.WriteString(ErrConstraintUnsatisfiable.Error())
	case KindInputInvalid:
		b.WriteString(ErrInputInvalid.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if e.TeamID != 0 {
		fmt.Fprintf(&b, ": team %d", e.TeamID)
	}
	if e.Week != 0 {
		fmt.Fprintf(&b, ": week %d", e.Week)
	}
	if e.SubjectID != 0 {
		fmt.Fprintf(&b, ": subject %d", e.SubjectID)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, ": %s", e.Ref)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Is lets errors.Is match a ScheduleError against the package sentinels.
func (e *ScheduleError) Is(target error) bool {
	switch target {
	case ErrConstraintUnsatisfiable:
		return e.Kind == KindConstraintUnsatisfiable
	case ErrInputInvalid:
		return e.Kind == KindInputInvalid
	}
	return false
}

// Unsatisfiable builds a ConstraintUnsatisfiable error for a team and subject.
func Unsatisfiable(teamID, subjectID int64, format string, args ...any) *ScheduleError {
	return &ScheduleError{
		Kind:      KindConstraintUnsatisfiable,
		TeamID:    teamID,
		SubjectID: subjectID,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// Invalid builds an InputInvalid error naming the offending record.
func Invalid(ref string, format string, args ...any) *ScheduleError {
	return &ScheduleError{
		Kind:   KindInputInvalid,
		Ref:    ref,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Ref formats an entity reference such as "subject 12".
func Ref(entity string, id int64) string {
	return fmt.Sprintf("%s %d", entity, id)
}
