package timecharge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chargecal/internal/timeutil"
)

// MaxRemarksLength bounds Record.Remarks in characters.
const MaxRemarksLength = 500

var ErrInvalidTransition = errors.New("invalid status transition")

type Kind string

const (
	KindExternal     Kind = "external"
	KindInternal     Kind = "internal"
	KindDepartmental Kind = "departmental"
	KindLeave        Kind = "leave"
)

// ChargeTypeCode returns the wire code of a charge kind (1/2/3). Leave has no code.
func (k Kind) ChargeTypeCode() int {
	switch k {
	case KindExternal:
		return 1
	case KindInternal:
		return 2
	case KindDepartmental:
		return 3
	default:
		return 0
	}
}

func (k Kind) IsCharge() bool {
	return k == KindExternal || k == KindInternal || k == KindDepartmental
}

func KindFromChargeType(code int) (Kind, error) {
	switch code {
	case 1:
		return KindExternal, nil
	case 2:
		return KindInternal, nil
	case 3:
		return KindDepartmental, nil
	default:
		return "", fmt.Errorf("unknown time_charge_type %d", code)
	}
}

func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "external", "1":
		return KindExternal, nil
	case "internal", "2":
		return KindInternal, nil
	case "departmental", "department", "3":
		return KindDepartmental, nil
	case "leave":
		return KindLeave, nil
	default:
		return "", fmt.Errorf("unknown time charge kind %q", value)
	}
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// IsFinal reports whether the status locks the record for editing.
func (s Status) IsFinal() bool {
	return s == StatusApproved || s == StatusDeclined
}

func ParseStatus(value string) Status {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approved", "1":
		return StatusApproved
	case "declined", "rejected", "2":
		return StatusDeclined
	default:
		return StatusPending
	}
}

// Record is a persisted time charge or leave entry, owned by the remote store.
type Record struct {
	ID   string
	Kind Kind

	Start time.Time
	End   time.Time
	// OccurrenceDate stands in for Start/End on single-date imports.
	OccurrenceDate time.Time

	IsOvertime      bool
	NextDayOvertime bool
	Status          Status

	ProjectID    string
	ProjectCode  string
	ProjectLabel string
	StageID      string
	StageLabel   string
	Activity     string
	TaskID       string
	TaskLabel    string
	LeaveType    string

	Remarks string
}

// Normalize fills Start/End from OccurrenceDate when the interval is missing and
// defaults an empty status to pending.
func (r *Record) Normalize() {
	if r.Start.IsZero() && r.End.IsZero() && !r.OccurrenceDate.IsZero() {
		r.Start = timeutil.StartOfDay(r.OccurrenceDate)
		r.End = r.Start
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
}

func (r Record) Editable() bool {
	return !r.Status.IsFinal()
}

// Deletable reports whether the record may be deleted. Declined records can still
// be removed; approved ones cannot.
func (r Record) Deletable() bool {
	return r.Status != StatusApproved
}

// Reopen moves an approved or declined record back to pending.
func (r *Record) Reopen() error {
	if !r.Status.IsFinal() {
		return fmt.Errorf("reopen %s record %s: %w", r.Status, r.ID, ErrInvalidTransition)
	}
	r.Status = StatusPending
	return nil
}

func (r *Record) Approve() error {
	return r.decide(StatusApproved)
}

func (r *Record) Decline() error {
	return r.decide(StatusDeclined)
}

func (r *Record) decide(target Status) error {
	if r.Status != StatusPending && r.Status != "" {
		return fmt.Errorf("%s %s record %s: %w", target, r.Status, r.ID, ErrInvalidTransition)
	}
	r.Status = target
	return nil
}

// Title renders the display label of the record.
func (r Record) Title() string {
	switch r.Kind {
	case KindExternal, KindInternal:
		label := firstNonEmpty(r.ProjectCode, r.ProjectLabel, r.ProjectID)
		if r.Activity != "" {
			if label == "" {
				return r.Activity
			}
			return label + " - " + r.Activity
		}
		if label != "" {
			return label
		}
	case KindDepartmental:
		if label := firstNonEmpty(r.TaskLabel, r.TaskID); label != "" {
			return label
		}
	case KindLeave:
		if r.LeaveType != "" {
			return r.LeaveType
		}
		return "Leave"
	}
	return string(r.Kind)
}

func (r Record) DurationMinutes() int {
	return timeutil.DurationMinutes(r.Start, r.End)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
