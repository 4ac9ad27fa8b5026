package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"chargecal/controller"
	"chargecal/internal/timeutil"
)

func TestConfirmDeletePrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "uppercase Y confirms", input: "Y\n", want: true},
		{name: "lowercase y does not confirm", input: "y\n", want: false},
		{name: "N does not confirm", input: "N\n", want: false},
		{name: "empty does not confirm", input: "\n", want: false},
		{name: "Y without newline confirms", input: "Y", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirmDeletePrompt(bytes.NewBufferString(tt.input), &out, []string{"42", "43"})
			if err != nil {
				t.Fatalf("confirm prompt returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if !strings.Contains(out.String(), "42, 43") {
				t.Fatalf("expected prompt to list ids, got %q", out.String())
			}
		})
	}
}

type recordingDeleter struct {
	deleted []string
	periods []timeutil.Period
	refuse  map[string]error
}

func (d *recordingDeleter) Delete(_ context.Context, id string, periods ...timeutil.Period) error {
	d.periods = periods
	if err, ok := d.refuse[id]; ok {
		return err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func TestDeleteChargesStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	deleter := &recordingDeleter{refuse: map[string]error{"2": controller.ErrNotDeletable}}
	count, err := deleteCharges(context.Background(), deleter, []string{"1", "2", "3"}, nil)
	if !errors.Is(err, controller.ErrNotDeletable) {
		t.Fatalf("expected not-deletable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "time charge 2") {
		t.Fatalf("expected failing id in error, got %v", err)
	}
	if count != 1 || len(deleter.deleted) != 1 || deleter.deleted[0] != "1" {
		t.Fatalf("expected only the first charge deleted, got %d %v", count, deleter.deleted)
	}

	march := timeutil.Period{Year: 2024, Month: 3}
	deleter = &recordingDeleter{}
	count, err = deleteCharges(context.Background(), deleter, []string{"5", "6"}, []timeutil.Period{march})
	if err != nil || count != 2 {
		t.Fatalf("expected both charges deleted, got %d %v", count, err)
	}
	if len(deleter.periods) != 1 || deleter.periods[0] != march {
		t.Fatalf("expected period hint passed through, got %v", deleter.periods)
	}
}

func TestParsePeriodFlags(t *testing.T) {
	t.Parallel()

	periods, err := parsePeriodFlags([]string{"2024-03", "2024-04"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(periods) != 2 || periods[1].Month != 4 {
		t.Fatalf("unexpected periods %v", periods)
	}
	if _, err := parsePeriodFlags([]string{"2024-13"}); err == nil || !strings.Contains(err.Error(), "--period") {
		t.Fatalf("expected flag error, got %v", err)
	}
}
