package recurrence

import (
	"strings"
	"time"

	"ms-community/internal/apperrors"
)

type Unit string

const (
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
)

// ParseUnit accepts the unit names case-insensitively, with or without a
// trailing "s".
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	switch u {
	case Day, Week, Month:
		return u, nil
	}
	return "", apperrors.Validation("unknown interval unit %q (want day, week or month)", s)
}

// Shift moves t forward by n units. Months follow the calendar: the day of
// month is kept when it exists and clamped to the month's last day otherwise,
// so Jan 31 + 1 month is Feb 28 (or 29) and Jan 31 + 2 months is Mar 31. The
// wall-clock time is kept in t's location.
func Shift(t time.Time, unit Unit, n int) time.Time {
	switch unit {
	case Day:
		return t.AddDate(0, 0, n)
	case Week:
		return t.AddDate(0, 0, 7*n)
	case Month:
		return addMonthsClamped(t, n)
	}
	return t
}

func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Occurrence is the computed time window of one copy.
type Occurrence struct {
	Index int
	Start time.Time
	End   *time.Time
}

// Schedule lists the count occurrences that follow start every interval
// units. Offsets are taken from the source date each time, never chained, so a
// clamped month does not drag later months back.
func Schedule(start time.Time, end *time.Time, unit Unit, interval, count int) []Occurrence {
	var duration time.Duration
	if end != nil {
		duration = end.Sub(start)
	}

	out := make([]Occurrence, 0, count)
	for i := 1; i <= count; i++ {
		occ := Occurrence{Index: i, Start: Shift(start, unit, i*interval)}
		if end != nil {
			e := occ.Start.Add(duration)
			occ.End = &e
		}
		out = append(out, occ)
	}
	return out
}
