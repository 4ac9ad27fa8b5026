package importer

import (
	"strings"
)

// Record is one spreadsheet row keyed by normalized header.
type Record struct {
	RowNumber int
	Values    map[string]string
}

// Get returns the first non-empty value among the header aliases.
func (r Record) Get(keys ...string) string {
	for _, key := range keys {
		if value, ok := r.Values[normalizeHeader(key)]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeHeader(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	trimmed = strings.TrimPrefix(trimmed, "\ufeff")
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(trimmed)
}
