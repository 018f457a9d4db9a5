package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateSkipsWeekendsAndHolidays(t *testing.T) {
	// Mon 2025-04-28 .. Sun 2025-05-11, with Wed 04-30 and Thu 05-01 off.
	holidays := NewHolidaySet(day(2025, 4, 30), day(2025, 5, 1))
	slots := Generate(day(2025, 4, 28), day(2025, 5, 11), holidays)

	require.Len(t, slots, 8*3)
	for i, s := range slots {
		assert.True(t, IsTeachingDay(s.Date), "slot %s on weekend", s)
		assert.False(t, holidays.IsHoliday(s.Date), "slot %s on holiday", s)
		if i > 0 {
			prev := slots[i-1]
			assert.True(t, model.SlotBefore(prev.Date, prev.Period, s.Date, s.Period),
				"slots not strictly ascending: %s then %s", prev, s)
		}
	}

	assert.Equal(t, model.PeriodMorning, slots[0].Period)
	assert.Equal(t, model.PeriodAfternoon, slots[1].Period)
	assert.Equal(t, model.PeriodEvening, slots[2].Period)
	assert.Equal(t, 1, slots[0].Week)
	assert.Equal(t, 2, slots[len(slots)-1].Week)
}

func TestGenerateEmptyRange(t *testing.T) {
	assert.Empty(t, Generate(day(2025, 5, 2), day(2025, 5, 1), nil))
}

func TestGenerateAllHolidays(t *testing.T) {
	holidays := NewHolidaySet(day(2025, 9, 1), day(2025, 9, 2))
	// Sat 08-30 .. Tue 09-02: weekend plus two holidays.
	assert.Empty(t, Generate(day(2025, 8, 30), day(2025, 9, 2), holidays))
}

func TestGenerateIgnoresClock(t *testing.T) {
	start := time.Date(2025, 5, 5, 18, 30, 0, 0, time.FixedZone("ICT", 7*3600))
	slots := Generate(start, start, nil)
	require.Len(t, slots, 3)
	assert.Equal(t, "2025-05-05", model.DateKey(slots[0].Date))
}

func TestGenerateWeeks(t *testing.T) {
	slots := GenerateWeeks(day(2025, 5, 5), 2, nil)
	require.Len(t, slots, 10*3)
	assert.Equal(t, "2025-05-16", model.DateKey(slots[len(slots)-1].Date))

	assert.Empty(t, GenerateWeeks(day(2025, 5, 5), 0, nil))
}

func TestWeekIndex(t *testing.T) {
	start := day(2025, 5, 1) // Thursday
	assert.Equal(t, 1, WeekIndex(start, day(2025, 5, 2)))
	assert.Equal(t, 2, WeekIndex(start, day(2025, 5, 5)))
	assert.Equal(t, 2, WeekIndex(start, day(2025, 5, 10)))
	assert.Equal(t, 3, WeekIndex(start, day(2025, 5, 12)))
	assert.Equal(t, 0, WeekIndex(start, day(2025, 4, 30)))
}

func TestWeekBounds(t *testing.T) {
	mon, sat := WeekBounds(day(2025, 5, 1))
	assert.Equal(t, day(2025, 4, 28), mon)
	assert.Equal(t, day(2025, 5, 3), sat)

	mon, _ = WeekBounds(day(2025, 5, 4)) // Sunday belongs to the week before
	assert.Equal(t, day(2025, 4, 28), mon)
}

func TestISOWeekSpan(t *testing.T) {
	// Wednesday to the next Thursday covers two whole ISO weeks
	from, to := ISOWeekSpan(day(2025, 5, 7), day(2025, 5, 15))
	assert.Equal(t, day(2025, 5, 5), from)
	assert.Equal(t, day(2025, 5, 18), to)

	from, to = ISOWeekSpan(day(2025, 5, 11), day(2025, 5, 11))
	assert.Equal(t, day(2025, 5, 5), from)
	assert.Equal(t, day(2025, 5, 11), to)
}

func TestISOWeeks(t *testing.T) {
	assert.Equal(t, "2025-W18", ISOWeek(day(2025, 5, 1)))
	assert.Equal(t, []string{"2024-W52", "2025-W01", "2025-W02"},
		ISOWeeks(day(2024, 12, 27), day(2025, 1, 6)))
	assert.Nil(t, ISOWeeks(day(2025, 1, 6), day(2025, 1, 5)))
}
