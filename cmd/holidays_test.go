package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chargecal/chargeapi"
)

func TestParseHolidayRange(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

	from, to, err := parseHolidayRange("", "", time.UTC, now)
	if err != nil {
		t.Fatalf("default range: %v", err)
	}
	if !from.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected default from %s", from)
	}
	if !to.Equal(time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("unexpected default to %s", to)
	}

	from, to, err = parseHolidayRange("2025-01-01", "2025-03-31", time.UTC, now)
	if err != nil {
		t.Fatalf("explicit range: %v", err)
	}
	if from.Year() != 2025 || to.Month() != time.March || to.Day() != 31 {
		t.Fatalf("unexpected explicit range %s - %s", from, to)
	}

	if _, _, err := parseHolidayRange("2025-04-01", "2025-03-31", time.UTC, now); err == nil {
		t.Fatalf("expected reversed range error")
	}
}

func TestLoadHolidayFile(t *testing.T) {
	t.Parallel()

	if cal, err := loadHolidayFile("", time.UTC, time.Now()); err != nil || cal != nil {
		t.Fatalf("expected no calendar without a file, got %v %v", cal, err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "holidays.yaml")
	content := "fixed:\n  - {date: \"12-25\", name: Christmas Day}\ndynamic:\n  - {date: \"2024-03-28\", name: Maundy Thursday}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write holidays: %v", err)
	}

	cal, err := loadHolidayFile(path, time.UTC, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("load holidays: %v", err)
	}
	if !cal.IsHoliday(time.Date(2031, time.December, 25, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected fixed holiday to recur")
	}
	if !cal.IsHoliday(time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected dynamic holiday")
	}

	unsupported := filepath.Join(dir, "holidays.json")
	if err := os.WriteFile(unsupported, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if _, err := loadHolidayFile(unsupported, time.UTC, time.Now()); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestPrintHolidays(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printHolidays(&out, chargeapi.Holidays{
		Fixed:   []chargeapi.HolidayEntry{{Date: "12-25", Name: "Christmas Day"}},
		Dynamic: []chargeapi.HolidayEntry{},
	})
	text := out.String()
	if !strings.Contains(text, "Fixed holidays: 1") || !strings.Contains(text, "12-25  Christmas Day") {
		t.Fatalf("unexpected output:\n%s", text)
	}
	if !strings.Contains(text, "Dynamic holidays: 0") {
		t.Fatalf("unexpected output:\n%s", text)
	}
}
