package output

import (
	"fmt"
	"strings"
	"time"

	"chargecal/calendar"
)

// Writer renders materialized events of one period.
type Writer interface {
	Write(path string, events []calendar.Event) error
}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

var eventHeaders = []string{"Ref", "RecordID", "Type", "Status", "Start", "End", "AllDay", "OTType", "Hours", "Title"}

func eventRow(event calendar.Event) []string {
	return []string{
		event.Ref.String(),
		event.OriginalID,
		string(event.Type),
		string(event.Status()),
		event.Start.Format(time.DateTime),
		event.End.Format(time.DateTime),
		fmt.Sprintf("%t", event.AllDay),
		string(event.OTType),
		minutesToHours(event.DurationMinutes()).StringFixed(2),
		event.Title,
	}
}
