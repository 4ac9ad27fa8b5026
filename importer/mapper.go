package importer

import (
	"fmt"
	"strings"
	"time"

	"chargecal/config"
	"chargecal/timecharge"
)

// MapOptions carries per-file values: the matched rule and the business zone.
type MapOptions struct {
	Rule     config.Rule
	Location *time.Location
}

// MapRecord turns one row into a time charge. Rows without any time columns
// are skipped (ok=false). Reference columns missing from the row fall back to
// the rule.
func MapRecord(record Record, opts MapOptions) (timecharge.Record, bool, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	start, end, ok, err := mapInterval(record, loc)
	if err != nil || !ok {
		return timecharge.Record{}, ok, err
	}

	kindValue := firstNonEmpty(record.Get("kind", "type", "time_charge_type", "chargetype"), opts.Rule.Kind, string(timecharge.KindExternal))
	kind, err := timecharge.ParseKind(kindValue)
	if err != nil {
		return timecharge.Record{}, false, fmt.Errorf("row %d: %w", record.RowNumber, err)
	}
	if !kind.IsCharge() {
		return timecharge.Record{}, false, fmt.Errorf("row %d: leaves cannot be imported as time charges", record.RowNumber)
	}

	overtime, err := parseBool(record.Get("is_ot", "overtime", "ot"))
	if err != nil {
		return timecharge.Record{}, false, fmt.Errorf("row %d: overtime: %w", record.RowNumber, err)
	}
	nextDay, err := parseBool(record.Get("next_day_ot", "nextdayovertime"))
	if err != nil {
		return timecharge.Record{}, false, fmt.Errorf("row %d: next day overtime: %w", record.RowNumber, err)
	}

	charge := timecharge.Record{
		Kind:            kind,
		Start:           start,
		End:             end,
		IsOvertime:      overtime,
		NextDayOvertime: nextDay,
		Status:          timecharge.StatusPending,
		Remarks:         record.Get("remarks", "description", "notes"),
	}
	switch kind {
	case timecharge.KindExternal, timecharge.KindInternal:
		charge.ProjectID = firstNonEmpty(record.Get("project_id"), opts.Rule.ProjectID)
		charge.ProjectCode = firstNonEmpty(record.Get("project_code", "project"), opts.Rule.ProjectCode)
		charge.StageID = firstNonEmpty(record.Get("stage_id"), opts.Rule.StageID)
		charge.StageLabel = record.Get("stage", "stage_name")
		charge.Activity = firstNonEmpty(record.Get("activity"), opts.Rule.Activity)
	case timecharge.KindDepartmental:
		charge.TaskID = firstNonEmpty(record.Get("task_id", "departmental_task_id"), opts.Rule.TaskID)
		charge.TaskLabel = record.Get("task", "departmental_task")
	}
	return charge, true, nil
}

// mapInterval reads start/end either as full timestamps or as a date plus
// clock columns. An hours column overrides the end.
func mapInterval(record Record, loc *time.Location) (time.Time, time.Time, bool, error) {
	startValue := record.Get("start_time", "startdatetime", "start")
	endValue := record.Get("end_time", "enddatetime", "end")
	dateValue := record.Get("date")
	hoursValue := record.Get("hours", "duration")
	if startValue == "" && endValue == "" && dateValue == "" {
		return time.Time{}, time.Time{}, false, nil
	}

	var start, end time.Time
	var err error
	if dateValue != "" {
		start, err = parseDateAndTime(dateValue, startValue, loc)
	} else {
		start, err = parseDateTime(startValue, loc)
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("row %d: parse start: %w", record.RowNumber, err)
	}

	if hoursValue != "" {
		minutes, err := parseHoursToMinutes(hoursValue)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("row %d: %w", record.RowNumber, err)
		}
		return start, start.Add(time.Duration(minutes) * time.Minute), true, nil
	}

	if dateValue != "" {
		end, err = parseDateAndTime(dateValue, endValue, loc)
		// A clock-only end before the start belongs to the next day.
		if err == nil && end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}
	} else {
		end, err = parseDateTime(endValue, loc)
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("row %d: parse end: %w", record.RowNumber, err)
	}
	return start, end, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
