package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	LocalLayout = "2006-01-02T15:04:05"
	DateLayout  = "2006-01-02"

	lunchStartHour = 12
	lunchEndHour   = 13
)

func StartOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

// EndOfDay returns the last whole second of the value's calendar day.
func EndOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 23, 59, 59, 0, value.Location())
}

func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func MinutesFromMidnight(value time.Time) int {
	return value.Hour()*60 + value.Minute()
}

// DurationMinutes returns whole minutes between start and end, never negative.
func DurationMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

func CrossesDayBoundary(start, end time.Time) bool {
	return !SameDay(start, end)
}

// IsNextDay reports whether end falls on the calendar day right after start.
func IsNextDay(start, end time.Time) bool {
	next := StartOfDay(start).AddDate(0, 0, 1)
	return SameDay(next, end.In(start.Location()))
}

// LunchOverlapMinutes returns the overlap between [start,end] and the 12:00-13:00
// window of start's day, capped at 60.
func LunchOverlapMinutes(start, end time.Time) int {
	day := StartOfDay(start)
	lunchStart := day.Add(lunchStartHour * time.Hour)
	lunchEnd := day.Add(lunchEndHour * time.Hour)

	from := maxTime(start, lunchStart)
	to := minTime(end, lunchEnd)
	overlap := DurationMinutes(from, to)
	if overlap > 60 {
		return 60
	}
	return overlap
}

// FormatLocal renders a timestamp without zone suffix; the business location is implied.
func FormatLocal(value time.Time) string {
	return value.Format(LocalLayout)
}

// ParseLocal parses a zone-less timestamp in loc. RFC3339 values are accepted and
// converted into loc.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.In(loc), nil
	}

	layouts := []string{
		LocalLayout,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		DateLayout,
	}
	for _, layout := range layouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	parsed, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return parsed, nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
