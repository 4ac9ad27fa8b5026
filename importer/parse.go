package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
	"01/02/2006 15:04",
	"01/02/2006 03:04 PM",
	"02.01.2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"03:04 PM",
	"3:04 PM",
}

// parseHoursToMinutes accepts "7.5", "7,5" and "1.234,5" style hour values.
func parseHoursToMinutes(raw string) (int, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, nil
	}
	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	hours, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hours %q: %w", raw, err)
	}

	minutes := int(math.Round(hours * 60))
	if minutes < 0 {
		return 0, fmt.Errorf("hours must not be negative")
	}
	return minutes, nil
}

func parseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.In(loc), nil
	}
	for _, layout := range dateTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime format: %q", value)
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}

// parseDateAndTime combines a date column with a clock column.
func parseDateAndTime(dateValue, timeValue string, loc *time.Location) (time.Time, error) {
	dateValue = strings.TrimSpace(dateValue)
	timeValue = strings.TrimSpace(timeValue)
	if dateValue == "" || timeValue == "" {
		return time.Time{}, fmt.Errorf("missing date or time")
	}

	day, err := parseDate(dateValue, loc)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if clock, err := time.Parse(layout, strings.ToUpper(timeValue)); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", timeValue)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "no", "n", "false", "f":
		return false, nil
	case "1", "yes", "y", "true", "t", "x":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported boolean value %q", value)
	}
}
