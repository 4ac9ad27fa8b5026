package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVReader reads delimited text. A UTF-16 byte order mark switches decoding,
// which covers spreadsheet exports saved as "Unicode text".
type CSVReader struct {
	Comma rune
}

func (r *CSVReader) Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file %s: %w", path, err)
	}
	defer file.Close()

	return r.ReadFrom(file)
}

func (r *CSVReader) ReadFrom(input io.Reader) ([]Record, error) {
	decoded := transform.NewReader(input, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if r.Comma != 0 {
		reader.Comma = r.Comma
	}

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	rows := make([][]string, 0, 128)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}

	return buildRecords(headers, rows, 2), nil
}
