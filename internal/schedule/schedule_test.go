package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateKey(t *testing.T) {
	key := DateKey(time.Date(2025, time.June, 20, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, "20_6_2025", key)

	// Single-digit day and month stay unpadded.
	key = DateKey(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2_1_2025", key)
}

func TestParseDateKey(t *testing.T) {
	day, err := ParseDateKey("20_6_2025", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC), day)

	for _, bad := range []string{"", "20_6", "20-6-2025", "a_6_2025", "0_6_2025", "32_1_2025", "20_13_2025", "31_2_2025"} {
		_, err := ParseDateKey(bad, time.UTC)
		assert.Error(t, err, "key %q should be rejected", bad)
	}
}

func TestDateKeyRoundTrip(t *testing.T) {
	orig := time.Date(2025, time.December, 3, 18, 45, 0, 0, time.UTC)
	day, err := ParseDateKey(DateKey(orig), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, orig.Year(), day.Year())
	assert.Equal(t, orig.Month(), day.Month())
	assert.Equal(t, orig.Day(), day.Day())
}

func TestDaySlotsFullDay(t *testing.T) {
	ref := time.Date(2025, time.June, 18, 9, 0, 0, 0, time.UTC)

	slots := DaySlots(ref, 1)
	require.Len(t, slots, 22) // 10:00 through 20:30

	assert.Equal(t, "10:00 AM", slots[0].Label)
	assert.Equal(t, "10:30 AM", slots[1].Label)
	assert.Equal(t, "08:30 PM", slots[len(slots)-1].Label)

	for i := 1; i < len(slots); i++ {
		assert.Equal(t, SlotMinutes*time.Minute, slots[i].Start.Sub(slots[i-1].Start))
	}
}

func TestDaySlotsToday(t *testing.T) {
	// Mid-day reference: day 0 starts at the next half-hour boundary.
	ref := time.Date(2025, time.June, 18, 14, 10, 0, 0, time.UTC)
	slots := DaySlots(ref, 0)
	require.NotEmpty(t, slots)
	assert.Equal(t, "02:30 PM", slots[0].Label)
	for _, s := range slots {
		assert.True(t, s.Start.After(ref), "slot %s is not after the reference instant", s.Label)
	}

	// Exactly on a boundary: that boundary is already in the past.
	ref = time.Date(2025, time.June, 18, 14, 30, 0, 0, time.UTC)
	slots = DaySlots(ref, 0)
	require.NotEmpty(t, slots)
	assert.Equal(t, "03:00 PM", slots[0].Label)

	// Before opening: day 0 still starts at opening time.
	ref = time.Date(2025, time.June, 18, 7, 45, 0, 0, time.UTC)
	slots = DaySlots(ref, 0)
	require.Len(t, slots, 22)
	assert.Equal(t, "10:00 AM", slots[0].Label)

	// After closing: day 0 offers nothing.
	ref = time.Date(2025, time.June, 18, 21, 5, 0, 0, time.UTC)
	slots = DaySlots(ref, 0)
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
}

func TestWindow(t *testing.T) {
	ref := time.Date(2025, time.June, 18, 9, 0, 0, 0, time.UTC)
	window := Window(ref, DefaultWindowDays)
	require.Len(t, window, DefaultWindowDays)

	for offset, slots := range window {
		assert.Len(t, slots, 22, "day %d", offset)
		for _, s := range slots {
			assert.Equal(t, 18+offset, s.Start.Day())
		}
	}
}

func TestWindowDeterministic(t *testing.T) {
	ref := time.Date(2025, time.June, 18, 11, 7, 0, 0, time.UTC)
	a := Window(ref, DefaultWindowDays)
	b := Window(ref, DefaultWindowDays)
	assert.Equal(t, a, b)
}

func TestContains(t *testing.T) {
	ref := time.Date(2025, time.June, 18, 9, 0, 0, 0, time.UTC)

	assert.True(t, Contains(ref, DefaultWindowDays, "20_6_2025", "10:00 AM"))
	assert.True(t, Contains(ref, DefaultWindowDays, "18_6_2025", "10:00 AM"))
	assert.True(t, Contains(ref, DefaultWindowDays, "24_6_2025", "08:30 PM"))

	// Outside the window.
	assert.False(t, Contains(ref, DefaultWindowDays, "25_6_2025", "10:00 AM"))
	assert.False(t, Contains(ref, DefaultWindowDays, "17_6_2025", "10:00 AM"))

	// Label the generator never emits.
	assert.False(t, Contains(ref, DefaultWindowDays, "20_6_2025", "10:15 AM"))
	assert.False(t, Contains(ref, DefaultWindowDays, "20_6_2025", "09:00 PM"))
	assert.False(t, Contains(ref, DefaultWindowDays, "20_6_2025", "10:00 am"))

	// Malformed date key.
	assert.False(t, Contains(ref, DefaultWindowDays, "2025-06-20", "10:00 AM"))
}

func TestContainsRespectsDayZeroClamp(t *testing.T) {
	ref := time.Date(2025, time.June, 18, 14, 10, 0, 0, time.UTC)

	// 10:00 AM today is already gone; the same label tomorrow is fine.
	assert.False(t, Contains(ref, DefaultWindowDays, "18_6_2025", "10:00 AM"))
	assert.True(t, Contains(ref, DefaultWindowDays, "18_6_2025", "02:30 PM"))
	assert.True(t, Contains(ref, DefaultWindowDays, "19_6_2025", "10:00 AM"))
}

func TestTimeLabelFormat(t *testing.T) {
	morning := time.Date(2025, time.June, 18, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "10:00 AM", morning.Format(TimeLabelLayout))

	afternoon := time.Date(2025, time.June, 18, 13, 30, 0, 0, time.UTC)
	assert.Equal(t, "01:30 PM", afternoon.Format(TimeLabelLayout))
}
