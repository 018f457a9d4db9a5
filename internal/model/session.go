package model

import (
	"cmp"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used in keys, files and the database.
const DateLayout = "2006-01-02"

// Period is a session of the day.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// Periods returns the periods of a day in teaching order.
func Periods() []Period {
	return []Period{PeriodMorning, PeriodAfternoon, PeriodEvening}
}

// Order returns the position of the period within a day, or -1 if unknown.
func (p Period) Order() int {
	switch p {
	case PeriodMorning:
		return 0
	case PeriodAfternoon:
		return 1
	case PeriodEvening:
		return 2
	}
	return -1
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p.Order() >= 0
}

var weekdayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayLabel returns the short weekday name stored on sessions.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}

// DateOnly drops the clock and location of t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats the calendar date of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// SlotKey identifies a (date, period) slot shared by all teams.
type SlotKey struct {
	Date   string
	Period Period
}

func (k SlotKey) String() string {
	return k.Date + " " + string(k.Period)
}

// SlotOf returns the slot key for a date and period.
func SlotOf(date time.Time, period Period) SlotKey {
	return SlotKey{Date: DateKey(date), Period: period}
}

// SessionKey identifies a session of a team.
type SessionKey struct {
	TeamID int64
	Date   string
	Period Period
}

func (k SessionKey) String() string {
	return fmt.Sprintf("team %d %s %s", k.TeamID, k.Date, k.Period)
}

// Session is one teaching slot of a team. It is a skeleton while LecturerID
// and LocationID are nil and resourced once both are set.
type Session struct {
	Week       int       `json:"week"`
	TeamID     int64     `json:"team_id"`
	SubjectID  int64     `json:"subject_id"`
	Date       time.Time `json:"date"`
	DayOfWeek  string    `json:"day_of_week"`
	Period     Period    `json:"session"`
	LecturerID *int64    `json:"lecturer_id"`
	LocationID *int64    `json:"location_id"`
}

func (s *Session) Key() SessionKey {
	return SessionKey{TeamID: s.TeamID, Date: DateKey(s.Date), Period: s.Period}
}

func (s *Session) Slot() SlotKey {
	return SlotOf(s.Date, s.Period)
}

// IsSkeleton reports whether neither resource has been assigned.
func (s *Session) IsSkeleton() bool {
	return s.LecturerID == nil && s.LocationID == nil
}

// IsResourced reports whether both resources are assigned.
func (s *Session) IsResourced() bool {
	return s.LecturerID != nil && s.LocationID != nil
}

// Before reports whether s takes place strictly before other, ignoring teams.
func (s *Session) Before(other *Session) bool {
	return SlotBefore(s.Date, s.Period, other.Date, other.Period)
}

// SlotBefore orders slots by date, then by period of the day.
func SlotBefore(aDate time.Time, aPeriod Period, bDate time.Time, bPeriod Period) bool {
	ad, bd := DateOnly(aDate), DateOnly(bDate)
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	return aPeriod.Order() < bPeriod.Order()
}

// CompareSessions orders sessions by date, period and team id.
func CompareSessions(a, b Session) int {
	if c := DateOnly(a.Date).Compare(DateOnly(b.Date)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Period.Order(), b.Period.Order()); c != 0 {
		return c
	}
	return cmp.Compare(a.TeamID, b.TeamID)
}
