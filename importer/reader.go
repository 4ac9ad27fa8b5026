package importer

import "fmt"

type Reader interface {
	Read(path string) ([]Record, error)
}

func ReaderForFormat(format string) (Reader, error) {
	switch normalizeHeader(format) {
	case "csv":
		return &CSVReader{Comma: ','}, nil
	case "tsv":
		return &CSVReader{Comma: '\t'}, nil
	case "excel", "xlsx", "xlsm", "xls":
		return &ExcelReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

// buildRecords keys each row by its normalized header. Missing trailing cells
// read as empty; blank rows are dropped.
func buildRecords(headers []string, rows [][]string, firstRow int) []Record {
	normalized := make([]string, len(headers))
	for i, header := range headers {
		normalized[i] = normalizeHeader(header)
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		values := make(map[string]string, len(normalized))
		blank := true
		for col, key := range normalized {
			if key == "" {
				continue
			}
			value := ""
			if col < len(row) {
				value = row[col]
			}
			if value != "" {
				blank = false
			}
			values[key] = value
		}
		if blank {
			continue
		}
		records = append(records, Record{RowNumber: firstRow + i, Values: values})
	}
	return records
}
