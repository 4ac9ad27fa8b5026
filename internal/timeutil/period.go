package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Period is one calendar month; it keys the event cache and the remote list calls.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(value time.Time) Period {
	return Period{Year: value.Year(), Month: value.Month()}
}

// Key renders the cache key "{year}-{month}".
func (p Period) Key() string {
	return fmt.Sprintf("%d-%d", p.Year, int(p.Month))
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Bounds returns the first and the last day of the month at midnight in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, -1)
}

func (p Period) Next() Period {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return PeriodOf(first)
}

func (p Period) Prev() Period {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return PeriodOf(first)
}

func (p Period) Contains(value time.Time) bool {
	return value.Year() == p.Year && value.Month() == p.Month
}

// ParsePeriod accepts "YYYY-MM".
func ParsePeriod(value string) (Period, error) {
	parsed, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q (expected YYYY-MM)", value)
	}
	return PeriodOf(parsed), nil
}

// Days lists every day of the period at midnight in loc.
func (p Period) Days(loc *time.Location) []time.Time {
	first, last := p.Bounds(loc)
	out := make([]time.Time, 0, last.Day())
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		out = append(out, day)
	}
	return out
}
