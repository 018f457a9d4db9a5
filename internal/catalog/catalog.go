// Package catalog holds the validated, read-only reference data a scheduling
// run works on. Inputs are checked once here so the calendar, sequencer and
// assigner can trust every identifier they see.
package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// Input is the raw reference snapshot supplied by a caller.
type Input struct {
	Subjects  []model.Subject
	Lecturers []model.Lecturer
	Locations []model.Location
	Holidays  []model.Holiday
	Teams     []model.Team
	Curricula []model.Curriculum
}

// Catalog is an immutable view over validated reference data.
type Catalog struct {
	subjects   map[int64]model.Subject
	subjectIDs []int64

	lecturers       map[int64]model.Lecturer
	lecturerIDs     []int64
	specializations map[int64]map[int64]struct{}

	locations   map[int64]model.Location
	locationIDs []int64
	affinities  map[int64]map[int64]struct{}

	holidays map[string]struct{}

	teams   map[int64]model.Team
	teamIDs []int64

	curricula map[model.Program][]int64
}

// New validates in and builds a Catalog. The first problem found is
// returned as an InputInvalid *model.ScheduleError.
func New(in Input) (*Catalog, error) {
	c := &Catalog{
		subjects:        make(map[int64]model.Subject, len(in.Subjects)),
		lecturers:       make(map[int64]model.Lecturer, len(in.Lecturers)),
		specializations: make(map[int64]map[int64]struct{}, len(in.Lecturers)),
		locations:       make(map[int64]model.Location, len(in.Locations)),
		affinities:      make(map[int64]map[int64]struct{}, len(in.Locations)),
		holidays:        make(map[string]struct{}, len(in.Holidays)),
		teams:           make(map[int64]model.Team, len(in.Teams)),
		curricula:       make(map[model.Program][]int64, len(in.Curricula)),
	}

	if err := c.addSubjects(in.Subjects); err != nil {
		return nil, err
	}
	if err := c.addLecturers(in.Lecturers); err != nil {
		return nil, err
	}
	if err := c.addLocations(in.Locations); err != nil {
		return nil, err
	}
	for _, h := range in.Holidays {
		if h.Date.IsZero() {
			return nil, model.Invalid(model.Ref("holiday", h.ID), "date is required")
		}
		c.holidays[model.DateKey(h.Date)] = struct{}{}
	}
	if err := c.addCurricula(in.Curricula); err != nil {
		return nil, err
	}
	if err := c.addTeams(in.Teams); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) addSubjects(subjects []model.Subject) error {
	for _, s := range subjects {
		ref := model.Ref("subject", s.ID)
		if s.ID <= 0 {
			return model.Invalid(ref, "id must be positive")
		}
		if _, dup := c.subjects[s.ID]; dup {
			return model.Invalid(ref, "duplicate id")
		}
		if strings.TrimSpace(s.Name) == "" {
			return model.Invalid(ref, "name is required")
		}
		if !s.Category.Valid() {
			return model.Invalid(ref, "unknown category %q", s.Category)
		}
		if s.PrerequisiteID != nil {
			prereq := *s.PrerequisiteID
			s.PrerequisiteID = &prereq
		}
		c.subjects[s.ID] = s
		c.subjectIDs = append(c.subjectIDs, s.ID)
	}
	for _, s := range c.subjects {
		if s.PrerequisiteID == nil {
			continue
		}
		ref := model.Ref("subject", s.ID)
		if *s.PrerequisiteID == s.ID {
			return model.Invalid(ref, "subject is its own prerequisite")
		}
		if _, ok := c.subjects[*s.PrerequisiteID]; !ok {
			return model.Invalid(ref, "unknown prerequisite %d", *s.PrerequisiteID)
		}
	}
	slices.Sort(c.subjectIDs)
	return nil
}

func (c *Catalog) addLecturers(lecturers []model.Lecturer) error {
	for _, l := range lecturers {
		ref := model.Ref("lecturer", l.ID)
		if l.ID <= 0 {
			return model.Invalid(ref, "id must be positive")
		}
		if _, dup := c.lecturers[l.ID]; dup {
			return model.Invalid(ref, "duplicate id")
		}
		if l.MaxSessionsPerWeek <= 0 {
			return model.Invalid(ref, "max sessions per week must be positive, got %d", l.MaxSessionsPerWeek)
		}
		if l.Faculty != "" && !l.Faculty.Valid() {
			return model.Invalid(ref, "unknown faculty %q", l.Faculty)
		}
		set, err := c.subjectSet(ref, "specialization", l.SpecializationIDs)
		if err != nil {
			return err
		}
		l.SpecializationIDs = sortedKeys(set)
		c.lecturers[l.ID] = l
		c.specializations[l.ID] = set
		c.lecturerIDs = append(c.lecturerIDs, l.ID)
	}
	slices.Sort(c.lecturerIDs)
	return nil
}

func (c *Catalog) addLocations(locations []model.Location) error {
	for _, l := range locations {
		ref := model.Ref("location", l.ID)
		if l.ID <= 0 {
			return model.Invalid(ref, "id must be positive")
		}
		if _, dup := c.locations[l.ID]; dup {
			return model.Invalid(ref, "duplicate id")
		}
		if l.Capacity < 0 {
			return model.Invalid(ref, "capacity must not be negative")
		}
		set, err := c.subjectSet(ref, "affinity", l.AffinityIDs)
		if err != nil {
			return err
		}
		l.AffinityIDs = sortedKeys(set)
		c.locations[l.ID] = l
		c.affinities[l.ID] = set
		c.locationIDs = append(c.locationIDs, l.ID)
	}
	slices.Sort(c.locationIDs)
	return nil
}

func (c *Catalog) addCurricula(curricula []model.Curriculum) error {
	for _, cur := range curricula {
		ref := model.Ref("curriculum", cur.ID)
		if !cur.Program.Valid() {
			return model.Invalid(ref, "unknown program %q", cur.Program)
		}
		if _, dup := c.curricula[cur.Program]; dup {
			return model.Invalid(ref, "program %s already has a curriculum", cur.Program)
		}
		for _, id := range cur.SubjectIDs {
			if _, ok := c.subjects[id]; !ok {
				return model.Invalid(ref, "unknown subject %d", id)
			}
		}
		c.curricula[cur.Program] = slices.Clone(cur.SubjectIDs)
	}
	return nil
}

func (c *Catalog) addTeams(teams []model.Team) error {
	for _, t := range teams {
		ref := model.Ref("team", t.ID)
		if t.ID <= 0 {
			return model.Invalid(ref, "id must be positive")
		}
		if _, dup := c.teams[t.ID]; dup {
			return model.Invalid(ref, "duplicate id")
		}
		if !t.Program.Valid() {
			return model.Invalid(ref, "unknown program %q", t.Program)
		}
		if t.TeamLeaderID != nil {
			if _, ok := c.lecturers[*t.TeamLeaderID]; !ok {
				return model.Invalid(ref, "unknown team leader %d", *t.TeamLeaderID)
			}
			leader := *t.TeamLeaderID
			t.TeamLeaderID = &leader
		}
		c.teams[t.ID] = t
		c.teamIDs = append(c.teamIDs, t.ID)
	}
	slices.Sort(c.teamIDs)
	return nil
}

func (c *Catalog) subjectSet(ref, field string, ids []int64) (map[int64]struct{}, error) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := c.subjects[id]; !ok {
			return nil, model.Invalid(ref, "%s references unknown subject %d", field, id)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Subject returns the subject with the given id.
func (c *Catalog) Subject(id int64) (model.Subject, bool) {
	s, ok := c.subjects[id]
	return s, ok
}

// SubjectIDs returns all subject ids in ascending order.
func (c *Catalog) SubjectIDs() []int64 {
	return slices.Clone(c.subjectIDs)
}

// Lecturer returns the lecturer with the given id.
func (c *Catalog) Lecturer(id int64) (model.Lecturer, bool) {
	l, ok := c.lecturers[id]
	return l, ok
}

// LecturerIDs returns all lecturer ids in ascending order.
func (c *Catalog) LecturerIDs() []int64 {
	return slices.Clone(c.lecturerIDs)
}

// Lecturers returns all lecturers ordered by id.
func (c *Catalog) Lecturers() []model.Lecturer {
	out := make([]model.Lecturer, 0, len(c.lecturerIDs))
	for _, id := range c.lecturerIDs {
		out = append(out, c.lecturers[id])
	}
	return out
}

// Qualified reports whether the lecturer specializes in the subject.
func (c *Catalog) Qualified(lecturerID, subjectID int64) bool {
	_, ok := c.specializations[lecturerID][subjectID]
	return ok
}

// Location returns the location with the given id.
func (c *Catalog) Location(id int64) (model.Location, bool) {
	l, ok := c.locations[id]
	return l, ok
}

// LocationIDs returns all location ids in ascending order.
func (c *Catalog) LocationIDs() []int64 {
	return slices.Clone(c.locationIDs)
}

// Locations returns all locations ordered by id.
func (c *Catalog) Locations() []model.Location {
	out := make([]model.Location, 0, len(c.locationIDs))
	for _, id := range c.locationIDs {
		out = append(out, c.locations[id])
	}
	return out
}

// Suitable reports whether the location may host the subject.
func (c *Catalog) Suitable(locationID, subjectID int64) bool {
	_, ok := c.affinities[locationID][subjectID]
	return ok
}

// IsHoliday reports whether no teaching happens on the date of t.
func (c *Catalog) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[model.DateKey(t)]
	return ok
}

// HolidayDates returns the holiday dates in ascending order.
func (c *Catalog) HolidayDates() []time.Time {
	keys := make([]string, 0, len(c.holidays))
	for k := range c.holidays {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		d, _ := time.Parse(model.DateLayout, k)
		out = append(out, d)
	}
	return out
}

// Team returns the team with the given id.
func (c *Catalog) Team(id int64) (model.Team, bool) {
	t, ok := c.teams[id]
	return t, ok
}

// TeamIDs returns all team ids in ascending order.
func (c *Catalog) TeamIDs() []int64 {
	return slices.Clone(c.teamIDs)
}

// CurriculumFor returns the ordered subject ids the team has to take.
func (c *Catalog) CurriculumFor(teamID int64) ([]int64, error) {
	t, ok := c.teams[teamID]
	if !ok {
		return nil, model.Invalid(model.Ref("team", teamID), "unknown team")
	}
	ids, ok := c.curricula[t.Program]
	if !ok {
		return nil, &model.ScheduleError{
			Kind:   model.KindInputInvalid,
			TeamID: teamID,
			Detail: fmt.Sprintf("no curriculum for program %s", t.Program),
		}
	}
	return slices.Clone(ids), nil
}

// ValidateSession checks that a session record only references known
// entities and is internally consistent.
func (c *Catalog) ValidateSession(s *model.Session) error {
	ref := s.Key().String()
	if _, ok := c.teams[s.TeamID]; !ok {
		return model.Invalid(ref, "unknown team %d", s.TeamID)
	}
	if _, ok := c.subjects[s.SubjectID]; !ok {
		return &model.ScheduleError{
			Kind:      model.KindInputInvalid,
			TeamID:    s.TeamID,
			Week:      s.Week,
			SubjectID: s.SubjectID,
			Ref:       ref,
			Detail:    "unknown subject",
		}
	}
	if s.Date.IsZero() {
		return model.Invalid(ref, "date is required")
	}
	if !s.Period.Valid() {
		return model.Invalid(ref, "unknown session %q", s.Period)
	}
	if s.DayOfWeek != "" && s.DayOfWeek != model.WeekdayLabel(s.Date) {
		return model.Invalid(ref, "day of week %s does not match date", s.DayOfWeek)
	}
	if s.LecturerID != nil {
		if _, ok := c.lecturers[*s.LecturerID]; !ok {
			return model.Invalid(ref, "unknown lecturer %d", *s.LecturerID)
		}
	}
	if s.LocationID != nil {
		if _, ok := c.locations[*s.LocationID]; !ok {
			return model.Invalid(ref, "unknown location %d", *s.LocationID)
		}
	}
	return nil
}
