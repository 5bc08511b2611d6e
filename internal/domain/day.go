package domain

import (
	"fmt"
	"time"
)

// DateLayout is the on-disk representation of a calendar date.
const DateLayout = "2006-01-02"

// LogicalDate returns the calendar date t belongs to when days start at
// startHour local time. Activity at 02:00 with a 04:00 boundary counts for
// the previous day. The result is midnight UTC of that date so that day
// arithmetic never crosses a DST transition.
func LogicalDate(t time.Time, startHour int) time.Time {
	shifted := t.Add(-time.Duration(startHour) * time.Hour)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date truncates t to its calendar date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// AddDays shifts a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}
