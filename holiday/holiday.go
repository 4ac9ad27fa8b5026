package holiday

import (
	"sort"
	"strings"
	"time"

	"chargecal/internal/timeutil"
)

type Kind string

const (
	// KindFixed recurs every year on the same month and day.
	KindFixed Kind = "fixed"
	// KindDynamic applies to one dated occurrence only.
	KindDynamic Kind = "dynamic"
)

type Entry struct {
	Date time.Time
	Kind Kind
	Name string
}

type monthDay struct {
	month time.Month
	day   int
}

// Calendar is a read-only holiday lookup. The zero value holds no holidays.
type Calendar struct {
	fixed   map[monthDay]Entry
	dynamic map[string]Entry
}

func NewCalendar(entries ...Entry) *Calendar {
	cal := &Calendar{}
	for _, entry := range entries {
		cal.Add(entry)
	}
	return cal
}

func (c *Calendar) Add(entry Entry) {
	if entry.Date.IsZero() {
		return
	}
	switch entry.Kind {
	case KindFixed:
		if c.fixed == nil {
			c.fixed = make(map[monthDay]Entry)
		}
		c.fixed[monthDay{month: entry.Date.Month(), day: entry.Date.Day()}] = entry
	default:
		entry.Kind = KindDynamic
		if c.dynamic == nil {
			c.dynamic = make(map[string]Entry)
		}
		c.dynamic[entry.Date.Format(timeutil.DateLayout)] = entry
	}
}

// Merge returns a new calendar holding the entries of both calendars.
func (c *Calendar) Merge(other *Calendar) *Calendar {
	out := NewCalendar(c.Entries()...)
	for _, entry := range other.Entries() {
		out.Add(entry)
	}
	return out
}

// Lookup finds the holiday matching date's calendar day. Dynamic entries win over
// fixed ones on the same day.
func (c *Calendar) Lookup(date time.Time) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	if entry, ok := c.dynamic[date.Format(timeutil.DateLayout)]; ok {
		return entry, true
	}
	if entry, ok := c.fixed[monthDay{month: date.Month(), day: date.Day()}]; ok {
		return entry, true
	}
	return Entry{}, false
}

func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.Lookup(date)
	return ok
}

// Entries lists all entries, fixed first, each group ordered by date.
func (c *Calendar) Entries() []Entry {
	if c == nil {
		return nil
	}
	fixed := make([]Entry, 0, len(c.fixed))
	for _, entry := range c.fixed {
		fixed = append(fixed, entry)
	}
	dynamic := make([]Entry, 0, len(c.dynamic))
	for _, entry := range c.dynamic {
		dynamic = append(dynamic, entry)
	}
	sortEntries(fixed)
	sortEntries(dynamic)
	return append(fixed, dynamic...)
}

// InPeriod lists the holidays that fall into the period, with fixed entries
// projected onto the period's year.
func (c *Calendar) InPeriod(period timeutil.Period, loc *time.Location) []Entry {
	out := make([]Entry, 0)
	for _, day := range period.Days(loc) {
		if entry, ok := c.Lookup(day); ok {
			entry.Date = day
			out = append(out, entry)
		}
	}
	return out
}

func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fixed) + len(c.dynamic)
}

func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "fixed", "recurring", "regular":
		return KindFixed
	default:
		return KindDynamic
	}
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Date.Before(entries[j].Date)
	})
}
