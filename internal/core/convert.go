package core

// convert.go turns raw CSV cells into typed values.
//
// Spreadsheet exports are messy: cells arrive with Excel formula prefixes
// (="value"), stray quotes, a UTF-8 BOM on the first header, and dates in
// whatever format the operator's locale produced.

import (
	"strings"
	"time"
)

// TwoDigitYearPivot controls how 2-digit years are read. A year that would
// land more than this many years in the future is moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		time.RFC3339,
		"20060102",
	}
)

// ParseDate parses a purchase or cohort date in any of the accepted layouts.
// The second result is false for empty or unrecognized input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// MakeHeaderIndex builds a HeaderIndex from a header row. Names are cleaned
// and lowercased. When a name repeats, the first position wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = i
	}
	return idx
}

// Get returns the cleaned cell for column name, or "" when the column is
// absent or the row is short.
func (h HeaderIndex) Get(row []string, name string) string {
	pos, ok := h[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

// Has reports whether the header contains the column.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// CleanCell trims whitespace, a leading BOM and Excel formula wrappers.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
