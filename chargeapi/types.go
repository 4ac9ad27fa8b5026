package chargeapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleID carries record and reference ids that the API sends either as
// numbers or as strings. Numeric ids are written back as numbers.
type FlexibleID string

func (id FlexibleID) String() string {
	return string(id)
}

func (id FlexibleID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

func (id FlexibleID) MarshalJSON() ([]byte, error) {
	text := strings.TrimSpace(string(id))
	if text == "" {
		return []byte(`""`), nil
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return []byte(text), nil
	}
	return json.Marshal(text)
}

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	switch text {
	case "", "null", `""`:
		*id = ""
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		*id = FlexibleID(number.String())
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*id = FlexibleID(strings.TrimSpace(asString))
		return nil
	}

	return fmt.Errorf("unsupported id value %q", text)
}

// TimeCharge is a time charge as listed by the API.
type TimeCharge struct {
	ID                   FlexibleID `json:"id"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	IsOT                 bool       `json:"is_ot"`
	NextDayOT            bool       `json:"next_day_ot"`
	OTType               string     `json:"ot_type,omitempty"`
	Remarks              string     `json:"remarks"`
	TimeChargeType       int        `json:"time_charge_type"`
	Status               string     `json:"status"`
	ProjectID            FlexibleID `json:"project_id"`
	ProjectCode          string     `json:"project_code,omitempty"`
	ProjectName          string     `json:"project_name,omitempty"`
	StageID              FlexibleID `json:"stage_id"`
	StageName            string     `json:"stage_name,omitempty"`
	Activity             string     `json:"activity,omitempty"`
	DepartmentalTaskID   FlexibleID `json:"departmental_task_id"`
	DepartmentalTaskName string     `json:"departmental_task_name,omitempty"`
}

// Leave is an approved or filed leave. Single-day leaves may carry only Date.
type Leave struct {
	ID        FlexibleID `json:"id"`
	StartTime string     `json:"start_time,omitempty"`
	EndTime   string     `json:"end_time,omitempty"`
	Date      string     `json:"date,omitempty"`
	LeaveType string     `json:"leave_type"`
	Status    string     `json:"status"`
	Remarks   string     `json:"remarks,omitempty"`
}

// HolidayEntry dates are "MM-DD" (or a full date) for fixed holidays and
// "YYYY-MM-DD" for dynamic ones.
type HolidayEntry struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type Holidays struct {
	Fixed   []HolidayEntry `json:"fixed"`
	Dynamic []HolidayEntry `json:"dynamic"`
}

// Payload is the create/update body of a time charge. Timestamps carry no zone
// suffix and are read in the business timezone.
type Payload struct {
	ID                   FlexibleID `json:"id,omitempty"`
	StartTime            string     `json:"start_time" validate:"required"`
	EndTime              string     `json:"end_time" validate:"required"`
	IsOT                 bool       `json:"is_ot"`
	NextDayOT            bool       `json:"next_day_ot"`
	OTType               string     `json:"ot_type" validate:"oneof=none weekend weekday_holiday weekend_holiday"`
	Remarks              string     `json:"remarks" validate:"max=500"`
	TimeChargeType       int        `json:"time_charge_type" validate:"oneof=1 2 3"`
	ProjectID            FlexibleID `json:"project_id,omitempty"`
	ProjectCode          string     `json:"project_code,omitempty"`
	ProjectName          string     `json:"project_name,omitempty"`
	StageID              FlexibleID `json:"stage_id,omitempty"`
	StageName            string     `json:"stage_name,omitempty"`
	Activity             string     `json:"activity,omitempty"`
	DepartmentalTaskID   FlexibleID `json:"departmental_task_id,omitempty"`
	DepartmentalTaskName string     `json:"departmental_task_name,omitempty"`
}

type MutationResult struct {
	ID      FlexibleID `json:"id"`
	Message string     `json:"message,omitempty"`
}

type reopenRequest struct {
	IDs []FlexibleID `json:"ids"`
}
