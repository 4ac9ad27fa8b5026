package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"chargecal/calendar"
)

type CSVWriter struct{}

func (w *CSVWriter) Write(path string, events []calendar.Event) error {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, eventRow(event))
	}
	return writeCSV(path, eventHeaders, rows)
}

func writeCSV(path string, headers []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
