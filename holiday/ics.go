package holiday

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"chargecal/internal/timeutil"
)

// ICSOptions controls how an iCalendar holiday feed is turned into entries.
type ICSOptions struct {
	// Location is the business timezone dates are anchored to. Defaults to time.Local.
	Location *time.Location
	// From / To bound the expansion of non-yearly recurrences. Plain yearly rules
	// become fixed entries and are not expanded.
	From time.Time
	To   time.Time
}

// LoadICS parses an iCalendar feed into holiday entries. Events with a plain
// FREQ=YEARLY rule become fixed holidays; everything else becomes dated holidays.
func LoadICS(r io.Reader, opts ICSOptions) ([]Entry, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	entries := make([]Entry, 0)
	for _, event := range cal.Events() {
		parsed, err := entriesFromEvent(event, opts)
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed...)
	}
	return entries, nil
}

func entriesFromEvent(event *ical.VEvent, opts ICSOptions) ([]Entry, error) {
	name := ""
	if prop := event.GetProperty(ical.ComponentPropertySummary); prop != nil {
		name = strings.TrimSpace(prop.Value)
	}

	startProp := event.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil || strings.TrimSpace(startProp.Value) == "" {
		return nil, fmt.Errorf("holiday %q: missing DTSTART", name)
	}
	start, err := parseICSDate(startProp.Value, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("holiday %q: %w", name, err)
	}

	if prop := event.GetProperty(ical.ComponentPropertyRrule); prop != nil && strings.TrimSpace(prop.Value) != "" {
		return expandRule(name, start, prop.Value, opts)
	}

	end := start
	if endProp := event.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil && strings.TrimSpace(endProp.Value) != "" {
		parsedEnd, err := parseICSDate(endProp.Value, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", name, err)
		}
		// DTEND of an all-day event is exclusive.
		if parsedEnd.After(start) {
			end = parsedEnd.AddDate(0, 0, -1)
		}
	}

	out := make([]Entry, 0, 1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, Entry{Date: day, Kind: KindDynamic, Name: name})
	}
	return out, nil
}

func expandRule(name string, start time.Time, raw string, opts ICSOptions) ([]Entry, error) {
	option, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("holiday %q: parse RRULE %q: %w", name, raw, err)
	}

	if isPlainYearly(*option) {
		return []Entry{{Date: start, Kind: KindFixed, Name: name}}, nil
	}

	if opts.From.IsZero() || opts.To.IsZero() {
		return nil, errors.New("holiday " + name + ": non-yearly recurrence requires an expansion range")
	}

	option.Dtstart = start
	rule, err := rrule.NewRRule(*option)
	if err != nil {
		return nil, fmt.Errorf("holiday %q: build RRULE: %w", name, err)
	}

	occurrences := rule.Between(opts.From, opts.To, true)
	out := make([]Entry, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, Entry{
			Date: timeutil.StartOfDay(occurrence.In(opts.Location)),
			Kind: KindDynamic,
			Name: name,
		})
	}
	return out, nil
}

func isPlainYearly(option rrule.ROption) bool {
	return option.Freq == rrule.YEARLY &&
		option.Interval <= 1 &&
		option.Count == 0 &&
		option.Until.IsZero() &&
		len(option.Byweekday) == 0 &&
		len(option.Bysetpos) == 0 &&
		len(option.Byyearday) == 0 &&
		len(option.Byweekno) == 0
}

func parseICSDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "Z") {
		if parsed, err := time.ParseInLocation("20060102T150405Z", value, time.UTC); err == nil {
			return timeutil.StartOfDay(parsed.In(loc)), nil
		}
	}
	for _, layout := range []string{"20060102T150405", "20060102"} {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return timeutil.StartOfDay(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported ics date %q", value)
}
