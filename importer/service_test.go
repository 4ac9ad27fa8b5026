package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chargecal/calendar"
	"chargecal/config"
	"chargecal/controller"
	"chargecal/internal/timeutil"
	"chargecal/storage"
	"chargecal/timecharge"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_ValidatesEachRowAgainstStoredCharges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.OpenSQLite(filepath.Join(dir, "chargecal.db"), time.UTC)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctrl := controller.New(store, controller.Options{Location: time.UTC})

	path := writeFile(t, dir, "design-2024-03.csv", []byte(`date,start,end,remarks
2024-03-11,09:00,17:00,Drafting plans
2024-03-11,10:00,11:00,Overlapping
,,,
2024-03-11,17:00,17:10,Too short
2024-03-12,22:00,02:00,Night shift
2024-03-11,09:00,17:00,Exported twice
`))
	rules := []config.Rule{{Name: "design", FileTemplate: "design-*.csv", Kind: "external", ProjectID: "11", StageID: "3", Activity: "Drafting"}}

	result, err := Run(context.Background(), []string{path}, ctrl, RunOptions{Rules: rules, Location: time.UTC})
	if err != nil {
		t.Fatalf("run import: %v", err)
	}

	if result.FilesProcessed != 1 || result.RowsRead != 5 || result.RowsMapped != 5 || result.Duplicates != 1 {
		t.Fatalf("unexpected counters %+v", result)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected 2 created charges, got %d", len(result.Created))
	}
	if result.Created[0].ID == "" {
		t.Fatalf("expected created charge to carry the store id")
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %v", result.Rejected)
	}
	if result.Rejected[0].Row != 3 || !result.Rejected[0].Errors.Has(calendar.RuleOverlap) {
		t.Fatalf("expected overlap rejection on row 3, got %s", result.Rejected[0])
	}
	if result.Rejected[1].Row != 5 || !result.Rejected[1].Errors.Has(calendar.RuleMinDuration) {
		t.Fatalf("expected min duration rejection on row 5, got %s", result.Rejected[1])
	}

	charges, err := store.ListTimeCharges(context.Background(), 2024, time.March)
	if err != nil {
		t.Fatalf("list charges: %v", err)
	}
	if len(charges) != 2 {
		t.Fatalf("expected 2 stored charges, got %d", len(charges))
	}
}

type recordingTarget struct {
	validated []calendar.Candidate
	created   int
}

func (r *recordingTarget) Events(context.Context, timeutil.Period) ([]calendar.Event, error) {
	return nil, nil
}

func (r *recordingTarget) Validate(_ context.Context, candidate calendar.Candidate, mode calendar.Mode, _ string) (calendar.ErrorMap, error) {
	r.validated = append(r.validated, candidate)
	if mode != calendar.ModeCreate {
		return calendar.ErrorMap{calendar.RuleInterval: "unexpected mode"}, nil
	}
	if candidate.Start.Hour() < 6 {
		return calendar.ErrorMap{calendar.RuleOverlap: "blocked"}, nil
	}
	return calendar.ErrorMap{}, nil
}

func (r *recordingTarget) Create(context.Context, timecharge.Record) (timecharge.Record, error) {
	r.created++
	return timecharge.Record{}, nil
}

func TestRun_DryRunOnlyValidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "sheet.tsv", []byte("start\tend\tproject_id\tstage_id\tactivity\n"+
		"2024-03-11 09:00\t2024-03-11 10:00\t11\t3\tDrafting\n"+
		"2024-03-11 05:00\t2024-03-11 06:00\t11\t3\tDrafting\n"+
		"2024-03-11 09:30\t2024-03-11 10:30\t11\t3\tDrafting\n"+
		"2024-03-11 09:00\t2024-03-11 10:00\t11\t3\tDrafting\n"))

	target := &recordingTarget{}
	result, err := Run(context.Background(), []string{path}, target, RunOptions{DryRun: true, Location: time.UTC})
	if err != nil {
		t.Fatalf("run import: %v", err)
	}
	if target.created != 0 {
		t.Fatalf("expected no creates in dry run")
	}
	if len(target.validated) != 2 || len(result.Created) != 1 || len(result.Rejected) != 2 || result.Duplicates != 1 {
		t.Fatalf("unexpected dry run result %+v", result)
	}
	if result.Rejected[1].Row != 4 || !result.Rejected[1].Errors.Has(calendar.RuleOverlap) {
		t.Fatalf("expected row 4 to overlap the first row, got %s", result.Rejected[1])
	}
}

func TestRun_RejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	if _, err := Run(context.Background(), []string{"hours.pdf"}, &recordingTarget{}, RunOptions{}); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestMatchRuleByTemplate(t *testing.T) {
	t.Parallel()

	rules := []config.Rule{
		{Name: "a", FileTemplate: "design-*.xlsx"},
		{Name: "b", FileTemplate: "/exports/*.csv"},
	}

	if rule := MatchRuleByTemplate("/tmp/design-2024-03.xlsx", rules); rule.Name != "a" {
		t.Fatalf("expected rule a, got %+v", rule)
	}
	if rule := MatchRuleByTemplate("/exports/march.csv", rules); rule.Name != "b" {
		t.Fatalf("expected rule b, got %+v", rule)
	}
	if rule := MatchRuleByTemplate("march.csv", rules); rule.Name != "" {
		t.Fatalf("expected no rule, got %+v", rule)
	}
}

func TestCSVReader_DecodesUTF16WithBOM(t *testing.T) {
	t.Parallel()

	text := "start,end\r\n2024-03-11 09:00,2024-03-11 10:00\r\n"
	encoded := []byte{0xFF, 0xFE}
	for _, b := range []byte(text) {
		encoded = append(encoded, b, 0x00)
	}
	path := writeFile(t, t.TempDir(), "utf16.csv", encoded)

	records, err := (&CSVReader{}).Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 || records[0].Get("start") != "2024-03-11 09:00" {
		t.Fatalf("unexpected records %+v", records)
	}
}
