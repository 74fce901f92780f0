package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the canonical YYYY-MM-DD form used for log dates.
const DateLayout = "2006-01-02"

// Clock supplies the reference instant at the application boundary.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

// Now implements Clock.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// FormatDate renders the calendar date of t in t's own location. A user's
// "today" therefore follows the clock's zone and never silently shifts to
// the UTC date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: parse date %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekWindow returns the seven calendar dates ending at ref, oldest first,
// each at midnight.
func WeekWindow(ref time.Time) []time.Time {
	y, m, d := ref.Date()
	out := make([]time.Time, 0, 7)
	for i := 6; i >= 0; i-- {
		out = append(out, time.Date(y, m, d-i, 0, 0, 0, 0, ref.Location()))
	}
	return out
}
