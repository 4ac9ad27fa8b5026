package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type SessionState string

const (
	SessionClean  SessionState = "clean"
	SessionDirty  SessionState = "dirty"
	SessionSaving SessionState = "saving"
	SessionSaved  SessionState = "saved"
)

type SessionEvent string

const (
	FieldChanged    SessionEvent = "field_changed"
	SaveRequested   SessionEvent = "save_requested"
	SaveSucceeded   SessionEvent = "save_succeeded"
	SaveFailed      SessionEvent = "save_failed"
	CancelRequested SessionEvent = "cancel_requested"
)

var ErrInvalidSessionTransition = errors.New("invalid edit session transition")

var sessionTransitions = map[SessionState]map[SessionEvent]SessionState{
	SessionClean: {
		FieldChanged:    SessionDirty,
		CancelRequested: SessionClean,
	},
	SessionDirty: {
		FieldChanged:    SessionDirty,
		SaveRequested:   SessionSaving,
		CancelRequested: SessionClean,
	},
	SessionSaving: {
		SaveSucceeded: SessionSaved,
		SaveFailed:    SessionDirty,
	},
	SessionSaved: {
		FieldChanged:    SessionDirty,
		CancelRequested: SessionClean,
	},
}

// EditSession tracks the dirty state of one edit form.
type EditSession struct {
	mu    sync.Mutex
	state SessionState
}

func NewEditSession() *EditSession {
	return &EditSession{state: SessionClean}
}

func (s *EditSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fire applies an event and returns the new state. Invalid events leave the
// state unchanged.
func (s *EditSession) Fire(event SessionEvent) (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := sessionTransitions[s.state][event]
	if !ok {
		return s.state, fmt.Errorf("%s on %s session: %w", event, s.state, ErrInvalidSessionTransition)
	}
	s.state = next
	return next, nil
}

// Save runs fn between SaveRequested and SaveSucceeded/SaveFailed.
func (s *EditSession) Save(ctx context.Context, fn func(context.Context) error) error {
	if _, err := s.Fire(SaveRequested); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_, _ = s.Fire(SaveFailed)
		return err
	}
	_, err := s.Fire(SaveSucceeded)
	return err
}
