package calendar

import (
	"time"

	"chargecal/internal/timeutil"
)

// Totals are the logged hours of one day.
type Totals struct {
	Regular  float64 `json:"regular"`
	Overtime float64 `json:"overtime"`
}

// DayTotals sums the charge events that start on date and are not declined. An
// event counts entirely as overtime when it is flagged as overtime or falls on a
// weekend or holiday; there is no 8-hour cap here.
func DayTotals(events []Event, date time.Time) Totals {
	regular, overtime := DayMinutes(events, date, "")
	return Totals{
		Regular:  float64(regular) / 60,
		Overtime: float64(overtime) / 60,
	}
}

// DayMinutes is the minute-granular form of DayTotals. Events owned by
// excludeRecordID are skipped.
func DayMinutes(events []Event, date time.Time, excludeRecordID string) (regular int, overtime int) {
	for _, event := range events {
		if !countsTowardTotals(event) {
			continue
		}
		if excludeRecordID != "" && event.OriginalID == excludeRecordID {
			continue
		}
		if !timeutil.SameDay(event.Start, date.In(event.Start.Location())) {
			continue
		}

		minutes := event.DurationMinutes()
		if event.Record.IsOvertime || event.OTType.Premium() {
			overtime += minutes
		} else {
			regular += minutes
		}
	}
	return regular, overtime
}

func countsTowardTotals(event Event) bool {
	return event.Type == TypeCharge && !event.Declined()
}
