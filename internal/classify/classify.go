package classify

import (
	"strings"
	"time"

	"chargecal/calendar"
	"chargecal/timecharge"
)

// Outcome of comparing an incoming charge with the records already on the calendar.
type Outcome string

const (
	OutcomeAdd       Outcome = "add"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOverlap   Outcome = "overlap"
)

// Conflict pairs an incoming charge with the first recorded entry it overlaps.
type Conflict struct {
	Incoming timecharge.Record
	Existing timecharge.Record
}

// Equivalent reports whether two charges describe the same work: same kind,
// same interval to the minute and same reference fields. Remarks and status
// are ignored.
func Equivalent(a, b timecharge.Record) bool {
	if !a.Kind.IsCharge() || a.Kind != b.Kind {
		return false
	}
	if !sameMinute(a.Start, b.Start) || !sameMinute(a.End, b.End) {
		return false
	}
	if a.IsOvertime != b.IsOvertime || a.NextDayOvertime != b.NextDayOvertime {
		return false
	}
	if a.Kind == timecharge.KindDepartmental {
		return sameRef(a.TaskID, b.TaskID)
	}
	return sameRef(a.ProjectID, b.ProjectID) && sameRef(a.StageID, b.StageID) && sameRef(a.Activity, b.Activity)
}

// Charge classifies one incoming charge. Duplicates are checked before
// overlaps, so an identical entry is never reported as a conflict.
func Charge(incoming timecharge.Record, existing []timecharge.Record) (Outcome, timecharge.Record) {
	for _, entry := range existing {
		if Equivalent(entry, incoming) {
			return OutcomeDuplicate, entry
		}
	}
	interval := calendar.Interval{Start: incoming.Start, End: incoming.End}
	for _, entry := range existing {
		if calendar.Overlaps(interval, calendar.Interval{Start: entry.Start, End: entry.End}) {
			return OutcomeOverlap, entry
		}
	}
	return OutcomeAdd, timecharge.Record{}
}

// Charges splits incoming charges by outcome against existing records.
func Charges(incoming, existing []timecharge.Record) ([]timecharge.Record, []Conflict, int) {
	toAdd := make([]timecharge.Record, 0, len(incoming))
	conflicts := make([]Conflict, 0)
	duplicates := 0

	for _, candidate := range incoming {
		outcome, match := Charge(candidate, existing)
		switch outcome {
		case OutcomeDuplicate:
			duplicates++
		case OutcomeOverlap:
			conflicts = append(conflicts, Conflict{Incoming: candidate, Existing: match})
		default:
			toAdd = append(toAdd, candidate)
		}
	}

	return toAdd, conflicts, duplicates
}

// Records collects the distinct charge and leave records behind events.
// Holiday markers and declined records are left out.
func Records(events []calendar.Event) []timecharge.Record {
	seen := make(map[string]struct{}, len(events))
	out := make([]timecharge.Record, 0, len(events))
	for _, event := range events {
		if event.Type == calendar.TypeHoliday || event.Declined() {
			continue
		}
		key := string(event.Type) + ":" + event.OriginalID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event.Record)
	}
	return out
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func sameRef(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
