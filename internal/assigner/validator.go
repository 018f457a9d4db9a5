package assigner

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

type ViolationKind string

const (
	ViolationLecturerDoubleBooked ViolationKind = "lecturer-double-booked"
	ViolationLocationDoubleBooked ViolationKind = "location-double-booked"
	ViolationTeamDoubleBooked     ViolationKind = "team-double-booked"
	ViolationWeeklyCap            ViolationKind = "weekly-cap-exceeded"
	ViolationUnqualified          ViolationKind = "lecturer-unqualified"
	ViolationUnsuitable           ViolationKind = "location-unsuitable"
)

// Violation is a broken scheduling rule found in a set of sessions.
type Violation struct {
	Kind   ViolationKind
	Detail string
}

func (v Violation) String() string {
	return string(v.Kind) + ": " + v.Detail
}

// Validate checks already resourced sessions against the booking rules and
// returns every violation found, in a stable order.
func Validate(sessions []model.Session, cat *catalog.Catalog) []Violation {
	var out []Violation

	teams := make(map[model.SessionKey]struct{})
	lecturers := make(map[model.SlotKey]map[int64]model.SessionKey)
	locations := make(map[model.SlotKey]map[int64]model.SessionKey)
	weekly := make(map[weekLoad]int)

	for _, i := range processingOrder(sessions) {
		s := &sessions[i]
		key, slot := s.Key(), s.Slot()

		if _, dup := teams[key]; dup {
			out = append(out, Violation{ViolationTeamDoubleBooked, fmt.Sprintf("%s has two sessions", key)})
		}
		teams[key] = struct{}{}

		if s.LecturerID != nil {
			id := *s.LecturerID
			if other, ok := claim(lecturers, slot, id, key); !ok {
				out = append(out, Violation{ViolationLecturerDoubleBooked,
					fmt.Sprintf("lecturer %d in %s and %s", id, other, key)})
			}
			if !cat.Qualified(id, s.SubjectID) {
				out = append(out, Violation{ViolationUnqualified,
					fmt.Sprintf("lecturer %d does not teach subject %d in %s", id, s.SubjectID, key)})
			}
			weekly[weekLoad{id, calendar.ISOWeek(s.Date)}]++
		}
		if s.LocationID != nil {
			id := *s.LocationID
			if other, ok := claim(locations, slot, id, key); !ok {
				out = append(out, Violation{ViolationLocationDoubleBooked,
					fmt.Sprintf("location %d in %s and %s", id, other, key)})
			}
			if !cat.Suitable(id, s.SubjectID) {
				out = append(out, Violation{ViolationUnsuitable,
					fmt.Sprintf("location %d does not host subject %d in %s", id, s.SubjectID, key)})
			}
		}
	}

	loads := make([]weekLoad, 0, len(weekly))
	for wl := range weekly {
		loads = append(loads, wl)
	}
	slices.SortFunc(loads, func(a, b weekLoad) int {
		if c := cmp.Compare(a.isoWeek, b.isoWeek); c != 0 {
			return c
		}
		return cmp.Compare(a.lecturerID, b.lecturerID)
	})
	for _, wl := range loads {
		l, ok := cat.Lecturer(wl.lecturerID)
		if !ok {
			continue
		}
		if n := weekly[wl]; n > l.MaxSessionsPerWeek {
			out = append(out, Violation{ViolationWeeklyCap,
				fmt.Sprintf("lecturer %d has %d sessions in %s, cap %d", wl.lecturerID, n, wl.isoWeek, l.MaxSessionsPerWeek)})
		}
	}
	return out
}

func claim(busy map[model.SlotKey]map[int64]model.SessionKey, slot model.SlotKey, id int64, key model.SessionKey) (model.SessionKey, bool) {
	owners, ok := busy[slot]
	if !ok {
		owners = make(map[int64]model.SessionKey)
		busy[slot] = owners
	}
	if other, taken := owners[id]; taken {
		return other, false
	}
	owners[id] = key
	return key, true
}
