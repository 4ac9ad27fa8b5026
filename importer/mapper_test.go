package importer

import (
	"testing"
	"time"

	"chargecal/config"
	"chargecal/timecharge"
)

func row(values map[string]string) Record {
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		normalized[normalizeHeader(key)] = value
	}
	return Record{RowNumber: 2, Values: normalized}
}

func TestMapRecord_RuleFillsMissingReferences(t *testing.T) {
	t.Parallel()

	rule := config.Rule{Name: "design", Kind: "external", ProjectID: "11", StageID: "3", Activity: "Drafting"}
	record, ok, err := MapRecord(row(map[string]string{
		"Date":     "2024-03-11",
		"Start":    "09:00",
		"End":      "17:00",
		"Activity": "Review",
		"Remarks":  "plans",
	}), MapOptions{Rule: rule, Location: time.UTC})
	if err != nil || !ok {
		t.Fatalf("map record: ok=%v err=%v", ok, err)
	}

	if record.Kind != timecharge.KindExternal || record.ProjectID != "11" || record.StageID != "3" {
		t.Fatalf("expected rule references, got %+v", record)
	}
	if record.Activity != "Review" {
		t.Fatalf("expected row activity to win, got %q", record.Activity)
	}
	if record.DurationMinutes() != 480 || record.Status != timecharge.StatusPending {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestMapRecord_ClockEndBeforeStartRollsToNextDay(t *testing.T) {
	t.Parallel()

	record, ok, err := MapRecord(row(map[string]string{
		"date":        "2024-03-11",
		"start":       "22:00",
		"end":         "02:00",
		"type":        "3",
		"task_id":     "40",
		"next_day_ot": "yes",
		"overtime":    "x",
	}), MapOptions{Location: time.UTC})
	if err != nil || !ok {
		t.Fatalf("map record: ok=%v err=%v", ok, err)
	}
	if record.Kind != timecharge.KindDepartmental || record.TaskID != "40" || record.ProjectID != "" {
		t.Fatalf("unexpected departmental mapping %+v", record)
	}
	if record.End.Day() != 12 || record.End.Hour() != 2 {
		t.Fatalf("expected end on the next day, got %s", record.End)
	}
	if !record.IsOvertime || !record.NextDayOvertime {
		t.Fatalf("expected overtime flags, got %+v", record)
	}
}

func TestMapRecord_HoursOverrideEnd(t *testing.T) {
	t.Parallel()

	record, _, err := MapRecord(row(map[string]string{
		"start_time": "2024-03-11 09:00",
		"end_time":   "2024-03-11 17:00",
		"hours":      "1,5",
		"project_id": "11",
	}), MapOptions{Location: time.UTC})
	if err != nil {
		t.Fatalf("map record: %v", err)
	}
	if record.End.Sub(record.Start) != 90*time.Minute {
		t.Fatalf("expected 90 minutes, got %s", record.End.Sub(record.Start))
	}
}

func TestMapRecord_SkipsAndRejects(t *testing.T) {
	t.Parallel()

	if _, ok, err := MapRecord(row(map[string]string{"remarks": "note only"}), MapOptions{}); ok || err != nil {
		t.Fatalf("expected row without times to be skipped, got ok=%v err=%v", ok, err)
	}
	if _, _, err := MapRecord(row(map[string]string{
		"start": "2024-03-11 09:00",
		"end":   "2024-03-11 10:00",
		"kind":  "leave",
	}), MapOptions{Location: time.UTC}); err == nil {
		t.Fatalf("expected leave rows to be rejected")
	}
	if _, _, err := MapRecord(row(map[string]string{
		"start":    "2024-03-11 09:00",
		"end":      "2024-03-11 10:00",
		"overtime": "maybe",
	}), MapOptions{Location: time.UTC}); err == nil {
		t.Fatalf("expected invalid overtime flag to fail")
	}
}
