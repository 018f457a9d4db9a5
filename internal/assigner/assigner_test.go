package assigner

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/sequencer"
)

var monday = time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

func ptr(v int64) *int64 { return &v }

func newCatalog(t *testing.T, lecturers []model.Lecturer, locations []model.Location) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Input{
		Subjects: []model.Subject{
			{ID: 1, Name: "Drill", Category: model.CategoryMilitary},
			{ID: 2, Name: "Tactics", Category: model.CategoryMilitary, PrerequisiteID: ptr(1)},
			{ID: 3, Name: "Ideology", Category: model.CategoryPolitical},
		},
		Lecturers: lecturers,
		Locations: locations,
		Teams: []model.Team{
			{ID: 1, Name: "T1", Program: model.ProgramDH, CourseID: 1},
			{ID: 2, Name: "T2", Program: model.ProgramDH, CourseID: 1},
			{ID: 3, Name: "T3", Program: model.ProgramCD, CourseID: 2},
		},
		Curricula: []model.Curriculum{
			{ID: 1, Program: model.ProgramDH, SubjectIDs: []int64{1, 2}},
			{ID: 2, Program: model.ProgramCD, SubjectIDs: []int64{3}},
		},
	})
	require.NoError(t, err)
	return cat
}

func lecturer(id int64, max int, subjects ...int64) model.Lecturer {
	return model.Lecturer{ID: id, FullName: "L", MaxSessionsPerWeek: max, SpecializationIDs: subjects}
}

func location(id int64, subjects ...int64) model.Location {
	return model.Location{ID: id, Name: "R", AffinityIDs: subjects}
}

func session(team, subject int64, date time.Time, p model.Period) model.Session {
	return model.Session{
		Week:      calendar.WeekIndex(monday, date),
		TeamID:    team,
		SubjectID: subject,
		Date:      date,
		DayOfWeek: model.WeekdayLabel(date),
		Period:    p,
	}
}

func TestAssignSingleTeamEndToEnd(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 5, 1, 2)},
		[]model.Location{location(100, 1, 2)},
	)
	slots := calendar.GenerateWeeks(monday, 1, nil)[:4]
	seq, err := sequencer.New(cat, sequencer.DefaultPolicy(), nil).Sequence(sequencer.Request{TeamID: 1, Slots: slots})
	require.NoError(t, err)
	require.Len(t, seq.Sessions, 2)

	batch := seq.Sessions
	report, err := New(cat, nil).Assign(batch, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Empty(t, report.Skipped)
	for _, s := range batch {
		require.True(t, s.IsResourced())
		assert.Equal(t, int64(10), *s.LecturerID)
		assert.Equal(t, int64(100), *s.LocationID)
	}
	assert.Equal(t, int64(1), batch[0].SubjectID)
	assert.Equal(t, slots[0].Date, batch[0].Date)

	led := newLedger()
	for i := range batch {
		led.commit(&batch[i])
	}
	assert.Equal(t, 2, led.weekCount(10, calendar.ISOWeek(monday)))
}

func TestAssignSharedSlotSingleLecturer(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 5, 1)},
		[]model.Location{location(100, 1), location(101, 1)},
	)
	batch := []model.Session{
		session(2, 1, monday, model.PeriodMorning),
		session(1, 1, monday, model.PeriodMorning),
	}

	report, err := New(cat, nil).Assign(batch, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Skipped, 1)

	// team 1 goes first within the slot
	assert.True(t, batch[1].IsResourced())
	assert.True(t, batch[0].IsSkeleton())

	skip := report.Skipped[0]
	assert.Equal(t, SkipReasonNoLecturer, skip.Reason)
	assert.Equal(t, int64(2), skip.Key.TeamID)
	assert.Contains(t, skip.Detail, "1 busy in slot")
}

func TestAssignWeeklyCap(t *testing.T) {
	days := []time.Time{monday, monday.AddDate(0, 0, 1), monday.AddDate(0, 0, 2)}
	newBatch := func() []model.Session {
		var b []model.Session
		for _, d := range days {
			b = append(b, session(1, 1, d, model.PeriodMorning))
		}
		return b
	}

	t.Run("no alternate lecturer", func(t *testing.T) {
		cat := newCatalog(t, []model.Lecturer{lecturer(10, 2, 1)}, []model.Location{location(100, 1)})
		batch := newBatch()

		report, err := New(cat, nil).Assign(batch, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Processed)
		require.Len(t, report.Skipped, 1)
		assert.Equal(t, SkipReasonNoLecturer, report.Skipped[0].Reason)
		assert.Equal(t, model.DateKey(days[2]), report.Skipped[0].Key.Date)
		assert.Contains(t, report.Skipped[0].Detail, "1 at weekly cap in 2025-W19")
		assert.True(t, batch[2].IsSkeleton())
	})

	t.Run("alternate lecturer", func(t *testing.T) {
		cat := newCatalog(t,
			[]model.Lecturer{lecturer(10, 2, 1), lecturer(11, 2, 1)},
			[]model.Location{location(100, 1)},
		)
		batch := newBatch()

		report, err := New(cat, nil).Assign(batch, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Processed)
		assert.Empty(t, report.Skipped)

		count := 0
		for _, s := range batch {
			if *s.LecturerID == 10 {
				count++
			}
		}
		assert.LessOrEqual(t, count, 2)
	})

	t.Run("cap resets with the ISO week", func(t *testing.T) {
		cat := newCatalog(t, []model.Lecturer{lecturer(10, 1, 1)}, []model.Location{location(100, 1)})
		batch := []model.Session{
			session(1, 1, monday.AddDate(0, 0, 4), model.PeriodMorning),
			session(1, 1, monday.AddDate(0, 0, 7), model.PeriodMorning),
		}
		report, err := New(cat, nil).Assign(batch, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Processed)
	})
}

func TestAssignBalancesLoadAndBreaksTiesByID(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(11, 9, 1), lecturer(10, 9, 1)},
		[]model.Location{location(101, 1), location(100, 1)},
	)
	var batch []model.Session
	for _, p := range model.Periods() {
		batch = append(batch, session(1, 1, monday, p))
	}
	batch = append(batch, session(1, 1, monday.AddDate(0, 0, 1), model.PeriodMorning))

	_, err := New(cat, nil).Assign(batch, nil)
	require.NoError(t, err)

	var lecturers, locations []int64
	for _, s := range batch {
		lecturers = append(lecturers, *s.LecturerID)
		locations = append(locations, *s.LocationID)
	}
	assert.Equal(t, []int64{10, 11, 10, 11}, lecturers)
	assert.Equal(t, []int64{100, 101, 100, 101}, locations)
}

func TestAssignReasonCodes(t *testing.T) {
	tests := []struct {
		name      string
		lecturers []model.Lecturer
		locations []model.Location
		want      SkipReasonCode
	}{
		{
			name:      "no lecturer",
			lecturers: []model.Lecturer{lecturer(10, 5, 3)},
			locations: []model.Location{location(100, 1)},
			want:      SkipReasonNoLecturer,
		},
		{
			name:      "no location",
			lecturers: []model.Lecturer{lecturer(10, 5, 1)},
			locations: []model.Location{location(100, 3)},
			want:      SkipReasonNoLocation,
		},
		{
			name:      "both",
			lecturers: []model.Lecturer{lecturer(10, 5, 3)},
			locations: []model.Location{location(100, 3)},
			want:      SkipReasonBoth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(t, tt.lecturers, tt.locations)
			batch := []model.Session{session(1, 1, monday, model.PeriodMorning)}

			report, err := New(cat, nil).Assign(batch, nil)
			require.NoError(t, err)
			require.Len(t, report.Skipped, 1)
			assert.Equal(t, tt.want, report.Skipped[0].Reason)
			assert.True(t, batch[0].IsSkeleton(), "a skipped session keeps no resource")
			assert.Equal(t, 1, report.SkipsByReason()[tt.want])
		})
	}
}

func TestAssignRespectsCommittedSessions(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 2, 1, 3), lecturer(11, 5, 1)},
		[]model.Location{location(100, 1, 3), location(101, 1)},
	)

	other := session(3, 3, monday, model.PeriodMorning)
	other.LecturerID, other.LocationID = ptr(10), ptr(100)
	otherLater := session(3, 3, monday.AddDate(0, 0, 1), model.PeriodMorning)
	otherLater.LecturerID, otherLater.LocationID = ptr(10), ptr(100)

	batch := []model.Session{
		session(1, 1, monday, model.PeriodMorning),
		session(1, 1, monday.AddDate(0, 0, 2), model.PeriodMorning),
	}

	report, err := New(cat, nil).Assign(batch, []model.Session{other, otherLater})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	// lecturer 10 and location 100 are taken on monday morning
	assert.Equal(t, int64(11), *batch[0].LecturerID)
	assert.Equal(t, int64(101), *batch[0].LocationID)
	// lecturer 10 already has two sessions that week
	assert.Equal(t, int64(11), *batch[1].LecturerID)
}

func TestAssignIgnoresCommittedCopiesOfBatch(t *testing.T) {
	cat := newCatalog(t, []model.Lecturer{lecturer(10, 5, 1)}, []model.Location{location(100, 1)})

	batch := []model.Session{session(1, 1, monday, model.PeriodMorning)}
	stale := batch[0]
	stale.LecturerID, stale.LocationID = ptr(10), ptr(100)

	report, err := New(cat, nil).Assign(batch, []model.Session{stale})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, int64(10), *batch[0].LecturerID)
}

func TestAssignLeavesPartialSessionsAlone(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 5, 1), lecturer(11, 5, 1)},
		[]model.Location{location(100, 1), location(101, 1)},
	)
	partial := session(1, 1, monday, model.PeriodMorning)
	partial.LecturerID = ptr(10)
	batch := []model.Session{partial, session(2, 1, monday, model.PeriodMorning)}

	report, err := New(cat, nil).Assign(batch, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Partial)
	assert.Nil(t, batch[0].LocationID)
	assert.Equal(t, int64(11), *batch[1].LecturerID, "lecturer of the partial session stays busy")
}

func TestAssignIsIdempotent(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 3, 1, 2), lecturer(11, 3, 1, 2)},
		[]model.Location{location(100, 1, 2)},
	)
	batch := []model.Session{
		session(1, 1, monday, model.PeriodMorning),
		session(2, 1, monday, model.PeriodMorning),
		session(1, 2, monday, model.PeriodAfternoon),
	}
	a := New(cat, nil)

	first, err := a.Assign(batch, nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.Processed)
	snapshot := slices.Clone(batch)

	second, err := a.Assign(batch, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Processed)
	assert.Empty(t, second.Assigned)
	assert.Equal(t, 2, second.AlreadyResourced)
	assert.Equal(t, snapshot, batch)
	// the session skipped the first time is still blocked
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, first.Skipped[0].Key, second.Skipped[0].Key)
}

func TestAssignIsDeterministic(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 4, 1, 2), lecturer(11, 3, 2, 3), lecturer(12, 6, 1, 3)},
		[]model.Location{location(100, 1, 2), location(101, 2, 3), location(102, 1, 2, 3)},
	)
	batch := syntheticBatch()

	one := slices.Clone(batch)
	two := slices.Clone(batch)
	r1, err := New(cat, nil).Assign(one, nil)
	require.NoError(t, err)
	r2, err := New(cat, nil).Assign(two, nil)
	require.NoError(t, err)

	assert.Equal(t, one, two)
	assert.Equal(t, r1.Processed, r2.Processed)
	assert.Equal(t, r1.Skipped, r2.Skipped)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

func TestAssignOutputHoldsBookingRules(t *testing.T) {
	cat := newCatalog(t,
		[]model.Lecturer{lecturer(10, 4, 1, 2), lecturer(11, 3, 2, 3), lecturer(12, 6, 1, 3)},
		[]model.Location{location(100, 1, 2), location(101, 2, 3), location(102, 1, 2, 3)},
	)
	batch := syntheticBatch()

	report, err := New(cat, nil).Assign(batch, nil)
	require.NoError(t, err)
	require.Positive(t, report.Processed)
	require.NotEmpty(t, report.Skipped, "fixture should exhaust some caps")

	assert.Empty(t, Validate(batch, cat))
	assert.Equal(t, len(batch), report.Processed+len(report.Skipped))
}

func TestAssignRejectsInvalidBatch(t *testing.T) {
	cat := newCatalog(t, []model.Lecturer{lecturer(10, 5, 1)}, []model.Location{location(100, 1)})

	unknown := session(1, 9, monday, model.PeriodMorning)
	_, err := New(cat, nil).Assign([]model.Session{session(1, 1, monday, model.PeriodEvening), unknown}, nil)
	assert.ErrorIs(t, err, model.ErrInputInvalid)

	dup := []model.Session{session(1, 1, monday, model.PeriodMorning), session(1, 2, monday, model.PeriodMorning)}
	_, err = New(cat, nil).Assign(dup, nil)
	assert.ErrorContains(t, err, "appears twice")
	assert.True(t, dup[0].IsSkeleton())
}

func TestReportText(t *testing.T) {
	skip := Skip{
		Key:       model.SessionKey{TeamID: 2, Date: "2025-05-05", Period: model.PeriodMorning},
		SubjectID: 1,
		Reason:    SkipReasonBoth,
		Detail:    "all booked",
	}
	assert.Equal(t, "team 2 2025-05-05 morning, subject 1: no lecturer and no location available (all booked)", skip.Message())

	r := &Report{Processed: 3, AlreadyResourced: 1, Skipped: []Skip{skip}}
	assert.Contains(t, r.Summary(), "3 resourced, 1 skipped, 1 already resourced")
}

func TestUnavailable(t *testing.T) {
	a := session(1, 1, monday, model.PeriodMorning)
	a.LecturerID, a.LocationID = ptr(11), ptr(100)
	b := session(2, 1, monday, model.PeriodMorning)
	b.LecturerID = ptr(10)
	c := session(1, 1, monday, model.PeriodAfternoon)

	busy := Unavailable([]model.Session{a, b, c})
	slot := model.SlotOf(monday, model.PeriodMorning)

	assert.Equal(t, []int64{10, 11}, busy.Lecturers[slot])
	assert.Equal(t, []int64{100}, busy.Locations[slot])
	assert.True(t, busy.LecturerBusy(slot, 10))
	assert.False(t, busy.LocationBusy(slot, 101))
	assert.Empty(t, busy.Lecturers[model.SlotOf(monday, model.PeriodAfternoon)])
}

// syntheticBatch builds two weeks of sessions for three teams.
func syntheticBatch() []model.Session {
	var batch []model.Session
	for i, slot := range calendar.GenerateWeeks(monday, 2, nil) {
		for team := int64(1); team <= 3; team++ {
			subject := int64((i+int(team))%3) + 1
			batch = append(batch, session(team, subject, slot.Date, slot.Period))
		}
	}
	return batch
}
