package holiday

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Fixed   []yamlEntry `yaml:"fixed"`
	Dynamic []yamlEntry `yaml:"dynamic"`
}

type yamlEntry struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// LoadYAML reads a holiday list of the form
//
//	fixed:
//	  - {date: "12-25", name: Christmas Day}
//	dynamic:
//	  - {date: "2024-03-28", name: Maundy Thursday}
//
// Fixed dates are MM-DD and anchored to year 2000 (a leap year, so 02-29 is valid).
func LoadYAML(r io.Reader, loc *time.Location) ([]Entry, error) {
	if loc == nil {
		loc = time.Local
	}

	var file yamlFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode holiday yaml: %w", err)
	}

	out := make([]Entry, 0, len(file.Fixed)+len(file.Dynamic))
	for i, item := range file.Fixed {
		date, err := time.ParseInLocation("2006-01-02", "2000-"+strings.TrimSpace(item.Date), loc)
		if err != nil {
			return nil, fmt.Errorf("fixed[%d]: invalid date %q (expected MM-DD)", i, item.Date)
		}
		out = append(out, Entry{Date: date, Kind: KindFixed, Name: strings.TrimSpace(item.Name)})
	}
	for i, item := range file.Dynamic {
		date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(item.Date), loc)
		if err != nil {
			return nil, fmt.Errorf("dynamic[%d]: invalid date %q (expected YYYY-MM-DD)", i, item.Date)
		}
		out = append(out, Entry{Date: date, Kind: KindDynamic, Name: strings.TrimSpace(item.Name)})
	}
	return out, nil
}
