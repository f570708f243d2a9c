package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceRecord is one row from a source query result: a field-name→value
// mapping with field names upper-cased at scan time so lookups are
// case-insensitive. Ephemeral; produced per query execution and consumed
// by the entity-specific mapper.
type SourceRecord map[string]any

// SourceResult holds the rows of one source query execution along with
// the column order reported by the driver.
type SourceResult struct {
	Columns []string       `json:"columns"`
	Rows    []SourceRecord `json:"rows"`
}

// Get returns the raw value for a field name, case-insensitively.
func (r SourceRecord) Get(field string) (any, bool) {
	v, ok := r[strings.ToUpper(field)]
	return v, ok
}

// GetString returns the value as a trimmed string, or "" when absent/null.
func (r SourceRecord) GetString(field string) string {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}

// sourceTimeLayouts covers the timestamp shapes hospital systems emit.
var sourceTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102150405",
}

// GetTime parses the value as a timestamp. Returns nil (not an error)
// when the field is absent or blank; unparseable non-blank values are an
// error so the caller can count the row as dropped.
func (r SourceRecord) GetTime(field string) (*time.Time, error) {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return nil, nil
	}
	if t, isTime := v.(time.Time); isTime {
		return &t, nil
	}
	s := r.GetString(field)
	if s == "" {
		return nil, nil
	}
	for _, layout := range sourceTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("field %s is not a timestamp: %q", field, s)
}
