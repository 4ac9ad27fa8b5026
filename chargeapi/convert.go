package chargeapi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

// ErrInvalidPayload marks payloads refused before they reach storage.
var ErrInvalidPayload = errors.New("invalid payload")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the wire-level constraints of a payload before it is sent.
func (p Payload) Validate() error {
	err := payloadValidator().Struct(p)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, fmt.Sprintf("%s failed %q", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(messages, ", "))
}

// PayloadFromRecord builds a create/update payload. otType is the classification
// of the record's start date.
func PayloadFromRecord(record timecharge.Record, otType holiday.OTType) Payload {
	if !otType.Valid() {
		otType = holiday.OTNone
	}
	payload := Payload{
		ID:             FlexibleID(record.ID),
		StartTime:      timeutil.FormatLocal(record.Start),
		EndTime:        timeutil.FormatLocal(record.End),
		IsOT:           record.IsOvertime,
		NextDayOT:      record.NextDayOvertime,
		OTType:         string(otType),
		Remarks:        record.Remarks,
		TimeChargeType: record.Kind.ChargeTypeCode(),
	}

	switch record.Kind {
	case timecharge.KindExternal, timecharge.KindInternal:
		payload.ProjectID = FlexibleID(record.ProjectID)
		payload.ProjectCode = record.ProjectCode
		payload.ProjectName = record.ProjectLabel
		payload.StageID = FlexibleID(record.StageID)
		payload.StageName = record.StageLabel
		payload.Activity = record.Activity
	case timecharge.KindDepartmental:
		payload.DepartmentalTaskID = FlexibleID(record.TaskID)
		payload.DepartmentalTaskName = record.TaskLabel
	}
	return payload
}

// Record parses the payload back into a pending record.
func (p Payload) Record(loc *time.Location) (timecharge.Record, error) {
	return TimeCharge{
		ID:                   p.ID,
		StartTime:            p.StartTime,
		EndTime:              p.EndTime,
		IsOT:                 p.IsOT,
		NextDayOT:            p.NextDayOT,
		OTType:               p.OTType,
		Remarks:              p.Remarks,
		TimeChargeType:       p.TimeChargeType,
		Status:               string(timecharge.StatusPending),
		ProjectID:            p.ProjectID,
		ProjectCode:          p.ProjectCode,
		ProjectName:          p.ProjectName,
		StageID:              p.StageID,
		StageName:            p.StageName,
		Activity:             p.Activity,
		DepartmentalTaskID:   p.DepartmentalTaskID,
		DepartmentalTaskName: p.DepartmentalTaskName,
	}.Record(loc)
}

func (tc TimeCharge) Record(loc *time.Location) (timecharge.Record, error) {
	kind, err := timecharge.KindFromChargeType(tc.TimeChargeType)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("time charge %s: %w", tc.ID, err)
	}
	start, err := timeutil.ParseLocal(tc.StartTime, loc)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("time charge %s start_time: %w", tc.ID, err)
	}
	end, err := timeutil.ParseLocal(tc.EndTime, loc)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("time charge %s end_time: %w", tc.ID, err)
	}

	return timecharge.Record{
		ID:              tc.ID.String(),
		Kind:            kind,
		Start:           start,
		End:             end,
		IsOvertime:      tc.IsOT,
		NextDayOvertime: tc.NextDayOT,
		Status:          timecharge.ParseStatus(tc.Status),
		ProjectID:       tc.ProjectID.String(),
		ProjectCode:     tc.ProjectCode,
		ProjectLabel:    tc.ProjectName,
		StageID:         tc.StageID.String(),
		StageLabel:      tc.StageName,
		Activity:        tc.Activity,
		TaskID:          tc.DepartmentalTaskID.String(),
		TaskLabel:       tc.DepartmentalTaskName,
		Remarks:         tc.Remarks,
	}, nil
}

// TimeChargeFromRecord renders a stored record in list form.
func TimeChargeFromRecord(record timecharge.Record, otType holiday.OTType) TimeCharge {
	payload := PayloadFromRecord(record, otType)
	return TimeCharge{
		ID:                   payload.ID,
		StartTime:            payload.StartTime,
		EndTime:              payload.EndTime,
		IsOT:                 payload.IsOT,
		NextDayOT:            payload.NextDayOT,
		OTType:               payload.OTType,
		Remarks:              payload.Remarks,
		TimeChargeType:       payload.TimeChargeType,
		Status:               string(record.Status),
		ProjectID:            payload.ProjectID,
		ProjectCode:          payload.ProjectCode,
		ProjectName:          payload.ProjectName,
		StageID:              payload.StageID,
		StageName:            payload.StageName,
		Activity:             payload.Activity,
		DepartmentalTaskID:   payload.DepartmentalTaskID,
		DepartmentalTaskName: payload.DepartmentalTaskName,
	}
}

func (l Leave) Record(loc *time.Location) (timecharge.Record, error) {
	record := timecharge.Record{
		ID:        l.ID.String(),
		Kind:      timecharge.KindLeave,
		Status:    timecharge.ParseStatus(l.Status),
		LeaveType: strings.TrimSpace(l.LeaveType),
		Remarks:   l.Remarks,
	}

	if strings.TrimSpace(l.StartTime) == "" || strings.TrimSpace(l.EndTime) == "" {
		date, err := timeutil.ParseDate(l.Date, loc)
		if err != nil {
			return timecharge.Record{}, fmt.Errorf("leave %s: %w", l.ID, err)
		}
		record.OccurrenceDate = date
		record.Normalize()
		return record, nil
	}

	start, err := timeutil.ParseLocal(l.StartTime, loc)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("leave %s start_time: %w", l.ID, err)
	}
	end, err := timeutil.ParseLocal(l.EndTime, loc)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("leave %s end_time: %w", l.ID, err)
	}
	record.Start = start
	record.End = end
	return record, nil
}

// Entries converts the wire holidays into calendar entries.
func (h Holidays) Entries(loc *time.Location) ([]holiday.Entry, error) {
	if loc == nil {
		loc = time.Local
	}
	out := make([]holiday.Entry, 0, len(h.Fixed)+len(h.Dynamic))
	for _, item := range h.Fixed {
		date, err := parseFixedDate(item.Date, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, holiday.Entry{Date: date, Kind: holiday.KindFixed, Name: item.Name})
	}
	for _, item := range h.Dynamic {
		date, err := timeutil.ParseDate(item.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("dynamic holiday: %w", err)
		}
		out = append(out, holiday.Entry{Date: date, Kind: holiday.KindDynamic, Name: item.Name})
	}
	return out, nil
}

// HolidaysFromEntries splits entries into the wire form.
func HolidaysFromEntries(entries []holiday.Entry) Holidays {
	out := Holidays{Fixed: []HolidayEntry{}, Dynamic: []HolidayEntry{}}
	for _, entry := range entries {
		if entry.Kind == holiday.KindFixed {
			out.Fixed = append(out.Fixed, HolidayEntry{Date: entry.Date.Format("01-02"), Name: entry.Name})
			continue
		}
		out.Dynamic = append(out.Dynamic, HolidayEntry{Date: entry.Date.Format(timeutil.DateLayout), Name: entry.Name})
	}
	return out
}

func parseFixedDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if date, err := time.ParseInLocation("01-02", value, loc); err == nil {
		return time.Date(2000, date.Month(), date.Day(), 0, 0, 0, 0, loc), nil
	}
	date, err := timeutil.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("fixed holiday: %w", err)
	}
	return date, nil
}
