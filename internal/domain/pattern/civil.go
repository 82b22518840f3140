package pattern

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates (ISO 8601, no time-of-day).
const DateLayout = "2006-01-02"

// MidnightUTC truncates t to 00:00:00 UTC of its calendar day. All temporal
// arithmetic in this package operates on midnight-UTC values so that DST
// transitions and leap years never perturb day counts.
func MidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date string.
func FormatDate(t time.Time) string {
	return MidnightUTC(t).Format(DateLayout)
}

// DaysBetween returns the whole number of calendar days from a to b.
// Negative when b precedes a. UTC days are uniformly 24 hours, so integer
// division is exact regardless of the inputs' locations or times of day.
func DaysBetween(a, b time.Time) int {
	return int(MidnightUTC(b).Sub(MidnightUTC(a)) / (24 * time.Hour))
}

// AddDays returns the calendar date n days after t.
func AddDays(t time.Time, n int) time.Time {
	return MidnightUTC(t).AddDate(0, 0, n)
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	return MidnightUTC(a).Equal(MidnightUTC(b))
}
