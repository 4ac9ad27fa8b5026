package calendar

import (
	"fmt"
	"time"

	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

// PartIndex tells which half of a split record an event covers.
type PartIndex int

const (
	PartWhole PartIndex = iota
	PartFirst
	PartSecond
)

// EventRef identifies an event: either a whole record or one part of a split record.
type EventRef struct {
	RecordID string
	Part     PartIndex
}

func Whole(id string) EventRef {
	return EventRef{RecordID: id, Part: PartWhole}
}

func Part(id string, part PartIndex) EventRef {
	return EventRef{RecordID: id, Part: part}
}

func (r EventRef) IsPart() bool {
	return r.Part != PartWhole
}

// String renders the display id. It is never parsed back; use Index to resolve refs.
func (r EventRef) String() string {
	switch r.Part {
	case PartFirst:
		return r.RecordID + "-part1"
	case PartSecond:
		return r.RecordID + "-part2"
	default:
		return r.RecordID
	}
}

type Type string

const (
	TypeCharge  Type = "charge"
	TypeLeave   Type = "leave"
	TypeHoliday Type = "holiday"
)

// Interval is a closed-open time range used by overlap checks.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports strict intersection: touching edges do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Event is a displayable, possibly clipped view of a record.
type Event struct {
	Ref        EventRef
	OriginalID string
	Type       Type
	Start      time.Time
	End        time.Time
	AllDay     bool
	OTType     holiday.OTType
	Title      string
	Editable   bool

	// Record is a copy of the owning record with its full interval.
	Record timecharge.Record
}

func (e Event) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

func (e Event) Status() timecharge.Status {
	return e.Record.Status
}

func (e Event) Declined() bool {
	return e.Record.Status == timecharge.StatusDeclined
}

func (e Event) DurationMinutes() int {
	return timeutil.DurationMinutes(e.Start, e.End)
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s [%s, %s]", e.Type, e.Ref, timeutil.FormatLocal(e.Start), timeutil.FormatLocal(e.End))
}
