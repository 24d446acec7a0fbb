package tabular

import (
	"strconv"
	"strings"
	"time"
)

// Table is the in-memory row/column abstraction the classifier operates on.
// Values are kept as raw strings; typedness is probed on demand.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnValues returns the value sequence for column i, skipping rows
// too short to contain it.
func (t *Table) ColumnValues(i int) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if i < len(row) {
			values = append(values, row[i])
		}
	}
	return values
}

// probeSampleSize caps how many non-empty values a type probe inspects.
const probeSampleSize = 10

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006/01/02",
}

// IsNumeric reports whether the sampled non-empty values of column i all
// parse as numbers. Columns with no non-empty values are not numeric.
func (t *Table) IsNumeric(i int) bool {
	sampled := 0
	for _, v := range t.ColumnValues(i) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err != nil {
			return false
		}
		sampled++
		if sampled >= probeSampleSize {
			break
		}
	}
	return sampled > 0
}

// IsDateTime reports whether the sampled non-empty values of column i all
// parse under one of the known datetime layouts.
func (t *Table) IsDateTime(i int) bool {
	sampled := 0
	for _, v := range t.ColumnValues(i) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !parseableAsTime(v) {
			return false
		}
		sampled++
		if sampled >= probeSampleSize {
			break
		}
	}
	return sampled > 0
}

func parseableAsTime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// UniqueRatio returns distinct non-empty values over row count for column i.
func (t *Table) UniqueRatio(i int) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, v := range t.ColumnValues(i) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return float64(len(seen)) / float64(len(t.Rows))
}

// UniqueValues returns the distinct non-empty values of column i.
func (t *Table) UniqueValues(i int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range t.ColumnValues(i) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
