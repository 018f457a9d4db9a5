package sequencer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

const (
	s1 int64 = iota + 1 // military, no prerequisite
	s2                  // military, after s1
	p1                  // political
	p2                  // political
	p3                  // political
	c1                  // cycles with c2
	c2
)

var monday = time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

func ptr(v int64) *int64 { return &v }

func testCatalog(t *testing.T, curriculum ...int64) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Input{
		Subjects: []model.Subject{
			{ID: s1, Name: "Drill", Category: model.CategoryMilitary},
			{ID: s2, Name: "Tactics", Category: model.CategoryMilitary, PrerequisiteID: ptr(s1)},
			{ID: p1, Name: "History", Category: model.CategoryPolitical},
			{ID: p2, Name: "Ideology", Category: model.CategoryPolitical},
			{ID: p3, Name: "Law", Category: model.CategoryPolitical},
			{ID: c1, Name: "Loop A", Category: model.CategoryMilitary, PrerequisiteID: ptr(c2)},
			{ID: c2, Name: "Loop B", Category: model.CategoryMilitary, PrerequisiteID: ptr(c1)},
		},
		Teams: []model.Team{
			{ID: 1, Name: "T1", Program: model.ProgramDH, CourseID: 1},
			{ID: 2, Name: "T2", Program: model.ProgramDH, CourseID: 1},
		},
		Curricula: []model.Curriculum{{ID: 1, Program: model.ProgramDH, SubjectIDs: curriculum}},
	})
	require.NoError(t, err)
	return cat
}

func week(n int) []calendar.Slot {
	return calendar.GenerateWeeks(monday, n, nil)
}

func subjects(sessions []model.Session) []int64 {
	out := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.SubjectID)
	}
	return out
}

func TestSequencePrerequisiteOrder(t *testing.T) {
	seq := New(testCatalog(t, s1, s2), DefaultPolicy(), nil)
	slots := week(1)[:4]

	res, err := seq.Sequence(Request{TeamID: 1, Slots: slots})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)

	first, second := res.Sessions[0], res.Sessions[1]
	assert.Equal(t, s1, first.SubjectID)
	assert.Equal(t, slots[0].Date, first.Date)
	assert.Equal(t, slots[0].Period, first.Period)
	assert.Equal(t, s2, second.SubjectID)
	assert.True(t, first.Before(&second))

	assert.Equal(t, 1, first.Week)
	assert.Equal(t, "Mon", first.DayOfWeek)
	assert.True(t, first.IsSkeleton())
}

func TestSequenceDefersUntilPrerequisitePlaced(t *testing.T) {
	seq := New(testCatalog(t, s2, s1, p1), DefaultPolicy(), nil)

	res, err := seq.Sequence(Request{TeamID: 1, Slots: week(1)})
	require.NoError(t, err)
	assert.Equal(t, []int64{s1, s2, p1}, subjects(res.Sessions))
	assert.Equal(t, 1, res.Deferred)
}

func TestSequenceCategoryRunLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  []int64
	}{
		{name: "limit two", limit: 2, want: []int64{p1, p2, s1, p3}},
		{name: "limit one", limit: 1, want: []int64{p1, s1, p2, p3}},
		{name: "disabled", limit: 0, want: []int64{p1, p2, p3, s1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := New(testCatalog(t, p1, p2, p3, s1), Policy{CategoryRunLimit: tt.limit}, nil)
			res, err := seq.Sequence(Request{TeamID: 1, Slots: week(1)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, subjects(res.Sessions))
		})
	}
}

func TestSequenceResumesFromExisting(t *testing.T) {
	seq := New(testCatalog(t, s1, s1, s2), DefaultPolicy(), nil)
	slots := week(1)

	existing := []model.Session{{
		Week: 1, TeamID: 1, SubjectID: s1,
		Date: slots[0].Date, DayOfWeek: "Mon", Period: slots[0].Period,
	}}

	res, err := seq.Sequence(Request{TeamID: 1, Slots: slots, Existing: existing})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reused)
	assert.Equal(t, []int64{s1, s2}, subjects(res.Sessions))
	for _, s := range res.Sessions {
		assert.NotEqual(t, existing[0].Slot(), s.Slot(), "existing slot reused")
	}
}

func TestSequenceFullyCoveredByExisting(t *testing.T) {
	seq := New(testCatalog(t, s1), DefaultPolicy(), nil)
	slots := week(1)
	existing := []model.Session{{TeamID: 1, SubjectID: s1, Date: slots[3].Date, Period: slots[3].Period}}

	res, err := seq.Sequence(Request{TeamID: 1, Slots: slots, Existing: existing})
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
	assert.Equal(t, 1, res.Reused)
}

func TestSequenceErrors(t *testing.T) {
	tests := []struct {
		name       string
		curriculum []int64
		req        Request
		kind       error
		contains   string
	}{
		{
			name:       "prerequisite outside curriculum",
			curriculum: []int64{s2},
			req:        Request{TeamID: 1, Slots: week(1)},
			kind:       model.ErrConstraintUnsatisfiable,
			contains:   "prerequisite 1 is not part of the curriculum",
		},
		{
			name:       "cyclic prerequisites",
			curriculum: []int64{c1, c2},
			req:        Request{TeamID: 1, Slots: week(1)},
			kind:       model.ErrConstraintUnsatisfiable,
			contains:   "cyclic",
		},
		{
			name:       "not enough slots",
			curriculum: []int64{s1, p1, p2},
			req:        Request{TeamID: 1, Slots: week(1)[:2]},
			kind:       model.ErrConstraintUnsatisfiable,
			contains:   "no free slot left",
		},
		{
			name:       "prerequisite takes the last slot",
			curriculum: []int64{s1, s2},
			req:        Request{TeamID: 1, Slots: week(1)[:1]},
			kind:       model.ErrConstraintUnsatisfiable,
			contains:   "prerequisite 1 could not be placed before it",
		},
		{
			name:       "unknown subject in override",
			curriculum: []int64{s1},
			req:        Request{TeamID: 1, Curriculum: []int64{s1, 99}, Slots: week(1)},
			kind:       model.ErrInputInvalid,
			contains:   "subject 99",
		},
		{
			name:       "unknown team",
			curriculum: []int64{s1},
			req:        Request{TeamID: 42, Slots: week(1)},
			kind:       model.ErrInputInvalid,
			contains:   "team 42",
		},
		{
			name:       "existing session of another team",
			curriculum: []int64{s1},
			req: Request{TeamID: 1, Slots: week(1), Existing: []model.Session{
				{TeamID: 2, SubjectID: s1, Date: monday, Period: model.PeriodMorning},
			}},
			kind:     model.ErrInputInvalid,
			contains: "belongs to team 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := New(testCatalog(t, tt.curriculum...), DefaultPolicy(), nil)
			res, err := seq.Sequence(tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestSequenceAllHolidays(t *testing.T) {
	holidays := calendar.NewHolidaySet(monday, monday.AddDate(0, 0, 1))
	slots := calendar.Generate(monday, monday.AddDate(0, 0, 1), holidays)
	require.Empty(t, slots)

	seq := New(testCatalog(t, s1, s2), DefaultPolicy(), nil)
	_, err := seq.Sequence(Request{TeamID: 1, Slots: slots})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConstraintUnsatisfiable)
	assert.ErrorContains(t, err, "no teaching slots")

	empty := New(testCatalog(t), DefaultPolicy(), nil)
	res, err := empty.Sequence(Request{TeamID: 1, Slots: slots})
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
}

func TestSequenceKeepsPrerequisitesEarlier(t *testing.T) {
	curriculum := []int64{s2, p1, s2, p2, s1, p3, s1, p1}
	seq := New(testCatalog(t, curriculum...), Policy{CategoryRunLimit: 1}, nil)

	res, err := seq.Sequence(Request{TeamID: 1, Slots: week(2)})
	require.NoError(t, err)
	require.Len(t, res.Sessions, len(curriculum))

	var firstS1 *model.Session
	for i := range res.Sessions {
		s := &res.Sessions[i]
		if s.SubjectID == s1 && firstS1 == nil {
			firstS1 = s
		}
		if s.SubjectID == s2 {
			require.NotNil(t, firstS1, "s2 placed before any s1")
			assert.True(t, firstS1.Before(s))
		}
	}
}

func TestSequenceTeamsIsolatesFailures(t *testing.T) {
	seq := New(testCatalog(t, s1, s2), DefaultPolicy(), nil)
	slots := week(1)

	out := seq.SequenceTeams([]Request{
		{TeamID: 2, Slots: slots},
		{TeamID: 7, Slots: slots},
		{TeamID: 1, Slots: slots},
	})
	require.Len(t, out, 3)

	assert.Equal(t, int64(1), out[0].TeamID)
	assert.NoError(t, out[0].Err)
	assert.Len(t, out[0].Result.Sessions, 2)

	assert.Equal(t, int64(2), out[1].TeamID)
	assert.NoError(t, out[1].Err)

	assert.Equal(t, int64(7), out[2].TeamID)
	assert.ErrorIs(t, out[2].Err, model.ErrInputInvalid)
	assert.Nil(t, out[2].Result)
}

func TestSequenceLongReversedChain(t *testing.T) {
	const n = 200

	// subject i needs i-1, and the curriculum lists them last to first
	var (
		subjs      []model.Subject
		curriculum []int64
	)
	for i := int64(1); i <= n; i++ {
		s := model.Subject{ID: i, Name: fmt.Sprintf("Module %d", i), Category: model.CategoryMilitary}
		if i%2 == 0 {
			s.Category = model.CategoryPolitical
		}
		if i > 1 {
			s.PrerequisiteID = ptr(i - 1)
		}
		subjs = append(subjs, s)
		curriculum = append(curriculum, n+1-i)
	}
	cat, err := catalog.New(catalog.Input{
		Subjects:  subjs,
		Teams:     []model.Team{{ID: 1, Name: "T1", Program: model.ProgramDH, CourseID: 1}},
		Curricula: []model.Curriculum{{ID: 1, Program: model.ProgramDH, SubjectIDs: curriculum}},
	})
	require.NoError(t, err)

	slots := week(14)
	require.GreaterOrEqual(t, len(slots), n)

	res, err := New(cat, DefaultPolicy(), nil).Sequence(Request{TeamID: 1, Slots: slots})
	require.NoError(t, err)
	require.Len(t, res.Sessions, n)
	assert.Equal(t, n-1, res.Deferred)

	for i, s := range res.Sessions {
		assert.Equal(t, int64(i+1), s.SubjectID)
		assert.Equal(t, slots[i].Key(), s.Slot())
		if i > 0 {
			prev := res.Sessions[i-1]
			assert.True(t, prev.Before(&s), "module %d placed before its prerequisite", s.SubjectID)
		}
	}

	// one slot short of the chain is reported, not looped on
	_, err = New(cat, DefaultPolicy(), nil).Sequence(Request{TeamID: 1, Slots: slots[:n-1]})
	assert.ErrorIs(t, err, model.ErrConstraintUnsatisfiable)
}
