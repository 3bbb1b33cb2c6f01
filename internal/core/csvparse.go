package core

// csvparse.go implements the small CSV dialect the importers accept.
//
// Text is split into lines on '\n' first (a trailing '\r' is dropped), then
// each line is split into fields. Quoted fields may contain commas and
// doubled quotes (""), but a quoted field cannot span lines. Operators paste
// spreadsheet exports into a textarea, so the line-first split keeps error
// messages tied to the line they see.

import (
	"strings"
	"unicode/utf8"
)

// SplitCSVLine splits one line into its fields. Surrounding quotes are
// removed and doubled quotes inside a quoted field collapse to one quote.
// Fields are not trimmed.
func SplitCSVLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuotes && c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = false
			}
		case inQuotes:
			field.WriteByte(c)
		case c == '"':
			inQuotes = true
		case c == ',':
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}

	return append(fields, field.String())
}

// JoinCSVLine is the inverse of SplitCSVLine. Fields containing a comma,
// quote or leading/trailing space are quoted.
func JoinCSVLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if needsQuoting(f) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(f)
		}
	}
	return b.String()
}

func needsQuoting(f string) bool {
	if f == "" {
		return false
	}
	return strings.ContainsAny(f, `,"`) || f[0] == ' ' || f[len(f)-1] == ' '
}

// sanitizeText replaces invalid UTF-8 and removes a leading BOM.
func sanitizeText(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.TrimPrefix(text, "\ufeff")
}

// csvRow is one non-blank data line.
type csvRow struct {
	Line  int // 1-based line number in the original text
	Cells []string
}

// csvTable is a parsed file: the header index plus data rows.
type csvTable struct {
	Header HeaderIndex
	Rows   []csvRow
}

// readCSVTable splits text into a header and data rows and checks that every
// required column in specs is present. Blank lines are skipped.
func readCSVTable(text string, specs []FieldSpec) (*csvTable, error) {
	lines := strings.Split(sanitizeText(text), "\n")

	table := &csvTable{}
	headerFound := false

	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cells := SplitCSVLine(line)
		if !headerFound {
			table.Header = MakeHeaderIndex(cells)
			headerFound = true
			continue
		}
		if isEmptyRow(cells) {
			continue
		}
		table.Rows = append(table.Rows, csvRow{Line: i + 1, Cells: cells})
	}

	if !headerFound {
		return nil, &ValidationError{Message: "file is empty"}
	}

	for _, spec := range specs {
		if spec.Required && !table.Header.Has(spec.Name) {
			return nil, &ValidationError{Line: 1, Field: spec.Name, Message: "missing required column"}
		}
	}

	return table, nil
}

// isEmptyRow reports whether every cell is blank, as left behind by
// spreadsheets that export trailing ",,," lines.
func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}
