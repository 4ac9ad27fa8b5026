package controller

import (
	"errors"
	"fmt"

	"chargecal/calendar"
)

var (
	ErrReadOnly         = errors.New("time charge is read-only")
	ErrNotDeletable     = errors.New("approved time charges cannot be deleted")
	ErrMutationInFlight = errors.New("another change to this time charge is still in progress")
	ErrNotLoaded        = errors.New("time charge is not in a loaded period")
)

// ValidationError refuses a mutation locally. It is never sent to the server.
type ValidationError struct {
	Errors calendar.ErrorMap
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Errors.String()
}

const (
	MessageMoveDisabled  = "move disabled: drag the start or end edge to change the time"
	MessageReshape       = "only one edge can be adjusted at a time"
	MessageSplitBoundary = "the midnight boundary of a split entry cannot be dragged"
)

// ConflictRejection is raised by the drag gate before any validation or network call.
type ConflictRejection struct {
	Reason string
}

func (e *ConflictRejection) Error() string {
	return e.Reason
}

// RemoteFailure wraps an error of the persistence API. Suppressed is set for
// drag and resize failures, where the caller shows a single outer notification.
type RemoteFailure struct {
	Op         string
	RecordID   string
	Suppressed bool
	Err        error
}

func (e *RemoteFailure) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s time charge: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s time charge %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}
