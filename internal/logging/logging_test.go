package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_FiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Str("record_id", "7").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "warn" || entry["record_id"] != "7" || entry["message"] != "shown" {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected timestamp in %v", entry)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("verbose", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
