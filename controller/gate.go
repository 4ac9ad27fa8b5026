package controller

import (
	"fmt"
	"time"

	"chargecal/calendar"
	"chargecal/chargeapi"
	"chargecal/holiday"
	"chargecal/timecharge"
)

type DragKind string

const (
	DragUnchanged   DragKind = "unchanged"
	DragMove        DragKind = "move"
	DragResizeStart DragKind = "resize_start"
	DragResizeEnd   DragKind = "resize_end"
	DragReshape     DragKind = "reshape"
)

// ClassifyDrag tells a move (same duration, shifted start) from an edge resize.
func ClassifyDrag(oldStart, oldEnd, newStart, newEnd time.Time) DragKind {
	startMoved := !oldStart.Equal(newStart)
	endMoved := !oldEnd.Equal(newEnd)

	switch {
	case !startMoved && !endMoved:
		return DragUnchanged
	case startMoved && oldEnd.Sub(oldStart) == newEnd.Sub(newStart):
		return DragMove
	case startMoved && !endMoved:
		return DragResizeStart
	case endMoved && !startMoved:
		return DragResizeEnd
	default:
		return DragReshape
	}
}

func CheckEditable(record timecharge.Record) error {
	if record.Editable() {
		return nil
	}
	return fmt.Errorf("%s time charge %s: %w", record.Status, record.ID, ErrReadOnly)
}

func CheckDeletable(record timecharge.Record) error {
	if record.Deletable() {
		return nil
	}
	return fmt.Errorf("%s time charge %s: %w", record.Status, record.ID, ErrNotDeletable)
}

// GateDrag runs before conflict validation. Moves are rejected outright and split
// parts may only resize their outer edge.
func GateDrag(event calendar.Event, newStart, newEnd time.Time) (DragKind, error) {
	if event.Type != calendar.TypeCharge {
		return "", fmt.Errorf("%s event %s: %w", event.Type, event.Ref, ErrReadOnly)
	}
	if err := CheckEditable(event.Record); err != nil {
		return "", err
	}

	kind := ClassifyDrag(event.Start, event.End, newStart, newEnd)
	switch kind {
	case DragMove:
		return kind, &ConflictRejection{Reason: MessageMoveDisabled}
	case DragReshape:
		return kind, &ConflictRejection{Reason: MessageReshape}
	}

	switch event.Ref.Part {
	case calendar.PartFirst:
		if kind == DragResizeEnd {
			return kind, &ConflictRejection{Reason: MessageSplitBoundary}
		}
	case calendar.PartSecond:
		if kind == DragResizeStart {
			return kind, &ConflictRejection{Reason: MessageSplitBoundary}
		}
	}
	return kind, nil
}

// DragRecord applies a gated drag to the event's own record. For split parts the
// untouched edge comes from the full record interval.
func DragRecord(event calendar.Event, newStart, newEnd time.Time) timecharge.Record {
	record := event.Record
	switch event.Ref.Part {
	case calendar.PartFirst:
		record.Start = newStart
	case calendar.PartSecond:
		record.End = newEnd
	default:
		record.Start = newStart
		record.End = newEnd
	}
	return record
}

// BuildPayload renders a record as a persistence payload.
func BuildPayload(record timecharge.Record, otType holiday.OTType) chargeapi.Payload {
	return chargeapi.PayloadFromRecord(record, otType)
}

// DragPayload builds the update payload of a drag purely from the event object.
func DragPayload(event calendar.Event, newStart, newEnd time.Time, cal *holiday.Calendar) (chargeapi.Payload, timecharge.Record) {
	record := DragRecord(event, newStart, newEnd)
	record.ID = event.OriginalID
	return BuildPayload(record, holiday.Classify(record.Start, cal)), record
}
