package web

import (
	"fmt"
	"strings"
	"time"

	"chargecal/calendar"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

type EventView struct {
	ID         string `json:"id"`
	OriginalID string `json:"original_id"`
	Part       int    `json:"part"`
	Type       string `json:"type"`
	Kind       string `json:"kind,omitempty"`
	Status     string `json:"status"`
	Start      string `json:"start"`
	End        string `json:"end"`
	AllDay     bool   `json:"all_day"`
	OTType     string `json:"ot_type"`
	Title      string `json:"title"`
	Editable   bool   `json:"editable"`
}

type RecordView struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	Start           string `json:"start"`
	End             string `json:"end"`
	IsOvertime      bool   `json:"is_ot"`
	NextDayOvertime bool   `json:"next_day_ot"`
	ProjectID       string `json:"project_id,omitempty"`
	StageID         string `json:"stage_id,omitempty"`
	Activity        string `json:"activity,omitempty"`
	TaskID          string `json:"task_id,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
}

type PeriodView struct {
	Period string      `json:"period"`
	Events []EventView `json:"events"`
}

type DayTotalsView struct {
	Date string `json:"date"`
	calendar.Totals
}

type ValidationView struct {
	Valid  bool              `json:"valid"`
	Errors calendar.ErrorMap `json:"errors"`
}

// chargeRequest is the form body of create, update and validate calls.
// Timestamps carry no zone and are read in the business timezone.
type chargeRequest struct {
	Kind            string `json:"kind"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Date            string `json:"date"`
	IsOvertime      bool   `json:"is_ot"`
	NextDayOvertime bool   `json:"next_day_ot"`
	ProjectID       string `json:"project_id"`
	ProjectCode     string `json:"project_code"`
	StageID         string `json:"stage_id"`
	Activity        string `json:"activity"`
	TaskID          string `json:"task_id"`
	Remarks         string `json:"remarks"`
}

type validateRequest struct {
	chargeRequest
	Mode      string `json:"mode"`
	EditingID string `json:"editing_id"`
}

type dragRequest struct {
	Part  int    `json:"part"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type reopenRequest struct {
	IDs []string `json:"ids"`
}

func eventView(event calendar.Event) EventView {
	view := EventView{
		ID:         event.Ref.String(),
		OriginalID: event.OriginalID,
		Part:       int(event.Ref.Part),
		Type:       string(event.Type),
		Status:     string(event.Status()),
		Start:      timeutil.FormatLocal(event.Start),
		End:        timeutil.FormatLocal(event.End),
		AllDay:     event.AllDay,
		OTType:     string(event.OTType),
		Title:      event.Title,
		Editable:   event.Editable,
	}
	if event.Type != calendar.TypeHoliday {
		view.Kind = string(event.Record.Kind)
	}
	return view
}

func eventViews(events []calendar.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, event := range events {
		out = append(out, eventView(event))
	}
	return out
}

func recordView(record timecharge.Record) RecordView {
	return RecordView{
		ID:              record.ID,
		Kind:            string(record.Kind),
		Status:          string(record.Status),
		Start:           timeutil.FormatLocal(record.Start),
		End:             timeutil.FormatLocal(record.End),
		IsOvertime:      record.IsOvertime,
		NextDayOvertime: record.NextDayOvertime,
		ProjectID:       record.ProjectID,
		StageID:         record.StageID,
		Activity:        record.Activity,
		TaskID:          record.TaskID,
		Remarks:         record.Remarks,
	}
}

func (r chargeRequest) record(loc *time.Location) (timecharge.Record, error) {
	kind := timecharge.KindExternal
	if strings.TrimSpace(r.Kind) != "" {
		parsed, err := timecharge.ParseKind(r.Kind)
		if err != nil {
			return timecharge.Record{}, err
		}
		kind = parsed
	}
	if !kind.IsCharge() {
		return timecharge.Record{}, fmt.Errorf("kind %q cannot be charged", r.Kind)
	}

	record := timecharge.Record{
		Kind:            kind,
		IsOvertime:      r.IsOvertime,
		NextDayOvertime: r.NextDayOvertime,
		ProjectID:       strings.TrimSpace(r.ProjectID),
		ProjectCode:     strings.TrimSpace(r.ProjectCode),
		StageID:         strings.TrimSpace(r.StageID),
		Activity:        strings.TrimSpace(r.Activity),
		TaskID:          strings.TrimSpace(r.TaskID),
		Remarks:         r.Remarks,
	}

	var err error
	if strings.TrimSpace(r.Start) != "" {
		if record.Start, err = timeutil.ParseLocal(r.Start, loc); err != nil {
			return timecharge.Record{}, fmt.Errorf("start: %w", err)
		}
	}
	if strings.TrimSpace(r.End) != "" {
		if record.End, err = timeutil.ParseLocal(r.End, loc); err != nil {
			return timecharge.Record{}, fmt.Errorf("end: %w", err)
		}
	}
	if strings.TrimSpace(r.Date) != "" {
		if record.OccurrenceDate, err = timeutil.ParseDate(r.Date, loc); err != nil {
			return timecharge.Record{}, fmt.Errorf("date: %w", err)
		}
	}
	return record, nil
}

func parseMode(value string) (calendar.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(calendar.ModeCreate):
		return calendar.ModeCreate, nil
	case string(calendar.ModeEdit):
		return calendar.ModeEdit, nil
	case string(calendar.ModeView):
		return calendar.ModeView, nil
	default:
		return "", fmt.Errorf("unsupported mode %q", value)
	}
}
