// Package calendar produces the teaching slots of a date range.
package calendar

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// HolidaySet reports dates with no teaching.
type HolidaySet interface {
	IsHoliday(t time.Time) bool
}

// Dates is a HolidaySet backed by a plain set of calendar dates.
type Dates map[string]struct{}

// NewHolidaySet builds a HolidaySet from dates. Clock parts are ignored.
func NewHolidaySet(dates ...time.Time) Dates {
	set := make(Dates, len(dates))
	for _, d := range dates {
		set[model.DateKey(d)] = struct{}{}
	}
	return set
}

func (d Dates) IsHoliday(t time.Time) bool {
	_, ok := d[model.DateKey(t)]
	return ok
}

// Slot is a (date, period) pair a team may be taught in.
type Slot struct {
	Week   int // 1-based, Monday-aligned, counted from the range start
	Date   time.Time
	Period model.Period
}

// Key returns the slot key shared by every team.
func (s Slot) Key() model.SlotKey {
	return model.SlotOf(s.Date, s.Period)
}

func (s Slot) String() string {
	return fmt.Sprintf("w%d %s %s", s.Week, model.DateKey(s.Date), s.Period)
}

// Generate returns the slots from start to end inclusive, skipping weekends
// and holidays, ordered by date then by period. An empty range yields no
// slots. holidays may be nil.
func Generate(start, end time.Time, holidays HolidaySet) []Slot {
	start, end = model.DateOnly(start), model.DateOnly(end)
	if start.After(end) {
		return nil
	}

	periods := model.Periods()
	days := int(end.Sub(start).Hours()/24) + 1
	slots := make([]Slot, 0, days*len(periods))

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !IsTeachingDay(d) {
			continue
		}
		if holidays != nil && holidays.IsHoliday(d) {
			continue
		}
		week := WeekIndex(start, d)
		for _, p := range periods {
			slots = append(slots, Slot{Week: week, Date: d, Period: p})
		}
	}
	return slots
}

// GenerateWeeks returns the slots of a fixed number of teaching weeks
// starting at start. weeks <= 0 yields no slots.
func GenerateWeeks(start time.Time, weeks int, holidays HolidaySet) []Slot {
	if weeks <= 0 {
		return nil
	}
	start = model.DateOnly(start)
	return Generate(start, start.AddDate(0, 0, 7*weeks-1), holidays)
}

// IsTeachingDay reports whether t falls Monday to Friday.
func IsTeachingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// WeekIndex returns the 1-based teaching week of date within a course
// starting at courseStart. Weeks begin on Monday, so a course starting on a
// Thursday has a short first week. Dates before the start return 0.
func WeekIndex(courseStart, date time.Time) int {
	first := monday(model.DateOnly(courseStart))
	d := model.DateOnly(date)
	if d.Before(model.DateOnly(courseStart)) {
		return 0
	}
	return int(d.Sub(first).Hours()/24)/7 + 1
}

// WeekBounds returns the Monday and Saturday of the week containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	mon := monday(model.DateOnly(t))
	return mon, mon.AddDate(0, 0, 5)
}

// ISOWeekSpan returns the Monday of the ISO week containing start and the
// Sunday of the ISO week containing end, the window a weekly cap has to see.
func ISOWeekSpan(start, end time.Time) (time.Time, time.Time) {
	return monday(model.DateOnly(start)), monday(model.DateOnly(end)).AddDate(0, 0, 6)
}

// ISOWeek returns a sortable ISO week key such as "2025-W18".
func ISOWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// ISOWeeks returns the distinct ISO week keys touched by [start, end] in
// ascending order.
func ISOWeeks(start, end time.Time) []string {
	start, end = model.DateOnly(start), model.DateOnly(end)
	if start.After(end) {
		return nil
	}
	var keys []string
	for mon := monday(start); !mon.After(end); mon = mon.AddDate(0, 0, 7) {
		keys = append(keys, ISOWeek(mon))
	}
	return keys
}

func monday(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
