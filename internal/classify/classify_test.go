package classify

import (
	"testing"
	"time"

	"chargecal/calendar"
	"chargecal/timecharge"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func baseExisting() timecharge.Record {
	return timecharge.Record{
		ID:        "10",
		Kind:      timecharge.KindExternal,
		Start:     at(11, 9, 0),
		End:       at(11, 10, 0),
		ProjectID: "11",
		StageID:   "3",
		Activity:  "Drafting",
		Status:    timecharge.StatusApproved,
		Remarks:   "original",
	}
}

func TestCharge_Duplicate(t *testing.T) {
	t.Parallel()

	incoming := baseExisting()
	incoming.ID = ""
	incoming.Status = timecharge.StatusPending
	incoming.Remarks = "duplicate with different remarks"
	incoming.Activity = " drafting "
	incoming.End = incoming.End.Add(30 * time.Second)

	outcome, match := Charge(incoming, []timecharge.Record{baseExisting()})
	if outcome != OutcomeDuplicate || match.ID != "10" {
		t.Fatalf("expected duplicate of 10, got %s %q", outcome, match.ID)
	}
}

func TestCharge_Overlap(t *testing.T) {
	t.Parallel()

	incoming := baseExisting()
	incoming.ID = ""
	incoming.Start = at(11, 9, 30)
	incoming.End = at(11, 11, 0)

	outcome, match := Charge(incoming, []timecharge.Record{baseExisting()})
	if outcome != OutcomeOverlap || match.ID != "10" {
		t.Fatalf("expected overlap with 10, got %s %q", outcome, match.ID)
	}
}

func TestCharge_DifferentReferencesOverlap(t *testing.T) {
	t.Parallel()

	incoming := baseExisting()
	incoming.StageID = "4"

	if outcome, _ := Charge(incoming, []timecharge.Record{baseExisting()}); outcome != OutcomeOverlap {
		t.Fatalf("expected overlap for same interval with other stage, got %s", outcome)
	}
}

func TestCharges_Split(t *testing.T) {
	t.Parallel()

	duplicate := baseExisting()
	touching := baseExisting()
	touching.Start = at(11, 10, 0)
	touching.End = at(11, 11, 0)
	overlapping := baseExisting()
	overlapping.Kind = timecharge.KindDepartmental
	overlapping.TaskID = "40"

	toAdd, conflicts, duplicates := Charges(
		[]timecharge.Record{duplicate, touching, overlapping},
		[]timecharge.Record{baseExisting()},
	)
	if duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", duplicates)
	}
	if len(toAdd) != 1 || !toAdd[0].Start.Equal(at(11, 10, 0)) {
		t.Fatalf("expected touching charge to be added, got %+v", toAdd)
	}
	if len(conflicts) != 1 || conflicts[0].Incoming.TaskID != "40" || conflicts[0].Existing.ID != "10" {
		t.Fatalf("unexpected conflicts %+v", conflicts)
	}
}

func TestRecords_DedupesPartsAndSkipsHolidaysAndDeclined(t *testing.T) {
	t.Parallel()

	night := timecharge.Record{ID: "7", Kind: timecharge.KindInternal, Start: at(11, 20, 0), End: at(12, 3, 0)}
	declined := timecharge.Record{ID: "8", Kind: timecharge.KindInternal, Start: at(13, 9, 0), End: at(13, 10, 0), Status: timecharge.StatusDeclined}
	leave := timecharge.Record{ID: "7", Kind: timecharge.KindLeave, Start: at(14, 8, 0), End: at(14, 12, 0)}

	events := []calendar.Event{
		{Ref: calendar.Part("7", calendar.PartFirst), OriginalID: "7", Type: calendar.TypeCharge, Record: night},
		{Ref: calendar.Part("7", calendar.PartSecond), OriginalID: "7", Type: calendar.TypeCharge, Record: night},
		{Ref: calendar.Whole("8"), OriginalID: "8", Type: calendar.TypeCharge, Record: declined},
		{Ref: calendar.Whole("7"), OriginalID: "7", Type: calendar.TypeLeave, Record: leave},
		{Ref: calendar.Whole("h1"), OriginalID: "h1", Type: calendar.TypeHoliday},
	}

	records := Records(events)
	if len(records) != 2 {
		t.Fatalf("expected split charge once plus leave, got %+v", records)
	}
	if records[0].Kind != timecharge.KindInternal || !records[0].End.Equal(at(12, 3, 0)) {
		t.Fatalf("expected full interval of the split charge, got %+v", records[0])
	}
	if records[1].Kind != timecharge.KindLeave {
		t.Fatalf("expected leave record, got %+v", records[1])
	}
}
