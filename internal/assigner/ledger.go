package assigner

import (
	"slices"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

type weekLoad struct {
	lecturerID int64
	isoWeek    string
}

// ledger tracks resource usage while a run is in progress. It is rebuilt
// from committed sessions at the start of every run.
type ledger struct {
	lecturerBusy map[model.SlotKey]map[int64]struct{}
	locationBusy map[model.SlotKey]map[int64]struct{}
	weekly       map[weekLoad]int

	// sessions handed out by the current run only
	lecturerRun map[int64]int
	locationRun map[int64]int
}

func newLedger() *ledger {
	return &ledger{
		lecturerBusy: make(map[model.SlotKey]map[int64]struct{}),
		locationBusy: make(map[model.SlotKey]map[int64]struct{}),
		weekly:       make(map[weekLoad]int),
		lecturerRun:  make(map[int64]int),
		locationRun:  make(map[int64]int),
	}
}

// commit records whatever resources s already holds.
func (l *ledger) commit(s *model.Session) {
	slot := s.Slot()
	if s.LecturerID != nil {
		mark(l.lecturerBusy, slot, *s.LecturerID)
		l.weekly[weekLoad{*s.LecturerID, calendar.ISOWeek(s.Date)}]++
	}
	if s.LocationID != nil {
		mark(l.locationBusy, slot, *s.LocationID)
	}
}

// take books both resources for s in the current run.
func (l *ledger) take(s *model.Session, lecturerID, locationID int64) {
	slot := s.Slot()
	mark(l.lecturerBusy, slot, lecturerID)
	mark(l.locationBusy, slot, locationID)
	l.weekly[weekLoad{lecturerID, calendar.ISOWeek(s.Date)}]++
	l.lecturerRun[lecturerID]++
	l.locationRun[locationID]++
}

func (l *ledger) lecturerFree(slot model.SlotKey, id int64) bool {
	_, busy := l.lecturerBusy[slot][id]
	return !busy
}

func (l *ledger) locationFree(slot model.SlotKey, id int64) bool {
	_, busy := l.locationBusy[slot][id]
	return !busy
}

func (l *ledger) weekCount(lecturerID int64, isoWeek string) int {
	return l.weekly[weekLoad{lecturerID, isoWeek}]
}

func mark(busy map[model.SlotKey]map[int64]struct{}, slot model.SlotKey, id int64) {
	set, ok := busy[slot]
	if !ok {
		set = make(map[int64]struct{})
		busy[slot] = set
	}
	set[id] = struct{}{}
}

// Busy lists the lecturers and locations taken in each slot.
type Busy struct {
	Lecturers map[model.SlotKey][]int64
	Locations map[model.SlotKey][]int64
}

// Unavailable collects the resources already committed per slot from
// sessions. Ids are sorted ascending.
func Unavailable(sessions []model.Session) Busy {
	l := newLedger()
	for i := range sessions {
		l.commit(&sessions[i])
	}
	return Busy{
		Lecturers: flatten(l.lecturerBusy),
		Locations: flatten(l.locationBusy),
	}
}

// LecturerBusy reports whether the lecturer is taken in slot.
func (b Busy) LecturerBusy(slot model.SlotKey, id int64) bool {
	_, ok := slices.BinarySearch(b.Lecturers[slot], id)
	return ok
}

// LocationBusy reports whether the location is taken in slot.
func (b Busy) LocationBusy(slot model.SlotKey, id int64) bool {
	_, ok := slices.BinarySearch(b.Locations[slot], id)
	return ok
}

func flatten(busy map[model.SlotKey]map[int64]struct{}) map[model.SlotKey][]int64 {
	out := make(map[model.SlotKey][]int64, len(busy))
	for slot, set := range busy {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		out[slot] = ids
	}
	return out
}
