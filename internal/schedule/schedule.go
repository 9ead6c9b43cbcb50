// Package schedule computes the offerable slot window for a doctor.
// Slot generation is pure: the same reference instant always yields the
// same window, so the booking service can re-derive it to validate that
// a requested slot was actually offerable.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Working-hours policy shared by every doctor: 10:00 open, 21:00
	// close, 30-minute slots.
	OpenHour    = 10
	CloseHour   = 21
	SlotMinutes = 30

	DefaultWindowDays = 7

	// TimeLabelLayout renders "10:00 AM" / "01:30 PM". Labels are the
	// within-day uniqueness key of the availability index and must never
	// be produced with any other layout.
	TimeLabelLayout = "03:04 PM"
)

// Slot is a candidate booking time. It carries no booking state.
type Slot struct {
	Start time.Time `json:"datetime"`
	Label string    `json:"time"`
}

// DateKey renders the availability index date key: day_month_year with a
// 1-indexed month and no zero padding, e.g. "20_1_2025". Externally
// persisted schedules use this exact format.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%d_%d_%d", t.Day(), int(t.Month()), t.Year())
}

// ParseDateKey inverts DateKey, returning midnight of that day in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed date key %q", key)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed date key %q: %w", key, err)
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date key %q out of range", key)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes overflow (e.g. 31_2_2025), which would let a
	// key map to a different day than it names.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("date key %q is not a calendar date", key)
	}
	return t, nil
}

// Window generates the candidate slots for each of the next windowDays
// days starting at the reference instant's day. Day 0 starts at the first
// half-hour boundary strictly after ref, never before opening time; later
// days start at opening time. A day whose start has reached closing time
// yields an empty list.
func Window(ref time.Time, windowDays int) [][]Slot {
	days := make([][]Slot, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		days = append(days, DaySlots(ref, i))
	}
	return days
}

// DaySlots generates the candidate slots for the day at the given offset
// from the reference instant's day.
func DaySlots(ref time.Time, offset int) []Slot {
	loc := ref.Location()
	day := ref.AddDate(0, 0, offset)
	year, month, dom := day.Date()

	start := time.Date(year, month, dom, OpenHour, 0, 0, 0, loc)
	end := time.Date(year, month, dom, CloseHour, 0, 0, 0, loc)

	if offset == 0 {
		if next := nextBoundaryAfter(ref); next.After(start) {
			start = next
		}
	}

	slots := []Slot{}
	for t := start; t.Before(end); t = t.Add(SlotMinutes * time.Minute) {
		slots = append(slots, Slot{Start: t, Label: t.Format(TimeLabelLayout)})
	}
	return slots
}

// Contains reports whether (dateKey, label) is a slot this generator
// would offer for the given reference instant. Booking validation uses it
// to reject fabricated and stale slots.
func Contains(ref time.Time, windowDays int, dateKey, label string) bool {
	day, err := ParseDateKey(dateKey, ref.Location())
	if err != nil {
		return false
	}

	// Calendar-date comparison rather than duration arithmetic, so DST
	// transitions inside the window cannot shift the offset.
	for offset := 0; offset < windowDays; offset++ {
		d := ref.AddDate(0, 0, offset)
		if d.Year() != day.Year() || d.Month() != day.Month() || d.Day() != day.Day() {
			continue
		}
		for _, s := range DaySlots(ref, offset) {
			if s.Label == label {
				return true
			}
		}
		return false
	}
	return false
}

// nextBoundaryAfter returns the first half-hour boundary strictly after t.
func nextBoundaryAfter(t time.Time) time.Time {
	loc := t.Location()
	b := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	for !b.After(t) {
		b = b.Add(SlotMinutes * time.Minute)
	}
	return b
}
