// Package timeutil provides UTC calendar helpers.
// Contribution dates, leaderboard windows and monthly jobs all use UTC
// calendar boundaries; keeping the arithmetic here keeps them in agreement.
package timeutil

import "time"

// MonthLayout formats a month key such as "2026-03".
const MonthLayout = "2006-01"

// DateLayout formats a calendar date such as "2026-03-18".
const DateLayout = "2006-01-02"

// StartOfDay returns midnight UTC of t's UTC day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the exclusive end of t's UTC day (next midnight).
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// StartOfWeek returns Monday 00:00 UTC of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns the first day of t's UTC month.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousMonth returns [start, end) of the UTC month before t.
func PreviousMonth(t time.Time) (start, end time.Time) {
	end = StartOfMonth(t)
	return end.AddDate(0, -1, 0), end
}

// MonthKey formats t's UTC month as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// IsFutureDate reports whether date falls on a UTC day after now's.
func IsFutureDate(date, now time.Time) bool {
	return StartOfDay(date).After(StartOfDay(now))
}
