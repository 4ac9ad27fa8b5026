package controller

import (
	"context"
	"errors"
	"testing"
)

func TestEditSession_Transitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		events []SessionEvent
		want   SessionState
	}{
		{name: "edit", events: []SessionEvent{FieldChanged}, want: SessionDirty},
		{name: "cancel dirty", events: []SessionEvent{FieldChanged, CancelRequested}, want: SessionClean},
		{name: "save", events: []SessionEvent{FieldChanged, SaveRequested, SaveSucceeded}, want: SessionSaved},
		{name: "save failed", events: []SessionEvent{FieldChanged, SaveRequested, SaveFailed}, want: SessionDirty},
		{name: "edit after save", events: []SessionEvent{FieldChanged, SaveRequested, SaveSucceeded, FieldChanged}, want: SessionDirty},
	}
	for _, tc := range cases {
		session := NewEditSession()
		for _, event := range tc.events {
			if _, err := session.Fire(event); err != nil {
				t.Fatalf("%s: fire %s: %v", tc.name, event, err)
			}
		}
		if session.State() != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, session.State())
		}
	}
}

func TestEditSession_InvalidTransitionsKeepState(t *testing.T) {
	t.Parallel()

	session := NewEditSession()
	if _, err := session.Fire(SaveRequested); !errors.Is(err, ErrInvalidSessionTransition) {
		t.Fatalf("expected clean session save to fail, got %v", err)
	}
	if session.State() != SessionClean {
		t.Fatalf("expected clean state, got %s", session.State())
	}

	_, _ = session.Fire(FieldChanged)
	_, _ = session.Fire(SaveRequested)
	if _, err := session.Fire(CancelRequested); !errors.Is(err, ErrInvalidSessionTransition) {
		t.Fatalf("expected cancel during save to fail, got %v", err)
	}
	if session.State() != SessionSaving {
		t.Fatalf("expected saving state, got %s", session.State())
	}
}

func TestEditSession_Save(t *testing.T) {
	t.Parallel()

	session := NewEditSession()
	_, _ = session.Fire(FieldChanged)

	failure := errors.New("remote down")
	if err := session.Save(context.Background(), func(context.Context) error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected save error, got %v", err)
	}
	if session.State() != SessionDirty {
		t.Fatalf("expected dirty after failed save, got %s", session.State())
	}

	if err := session.Save(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("save: %v", err)
	}
	if session.State() != SessionSaved {
		t.Fatalf("expected saved, got %s", session.State())
	}
}
