package core

import (
	"strings"
	"time"
)

// StudentColumns are the columns the student importer understands.
var StudentColumns = []FieldSpec{
	{Name: "email", Type: FieldEmail, Required: true, Help: "Unique per student, matched case-insensitively"},
	{Name: "name", Type: FieldText},
	{Name: "company", Type: FieldText},
	{Name: "purchase_date", Type: FieldDate, Help: "YYYY-MM-DD or M/D/YYYY"},
	{Name: "access_level", Type: FieldEnum, EnumValues: accessLevelNames(), Help: "Key or label; defaults to Curriculum Only"},
	{Name: "status", Type: FieldEnum, EnumValues: studentStatusNames(), Help: "Defaults to onboarding"},
	{Name: "notes", Type: FieldText},
}

func accessLevelNames() []string {
	names := make([]string, len(AccessLevels))
	for i, a := range AccessLevels {
		names[i] = string(a)
	}
	return names
}

func studentStatusNames() []string {
	names := make([]string, len(StudentStatuses))
	for i, s := range StudentStatuses {
		names[i] = string(s)
	}
	return names
}

// SampleStudentCSV is the downloadable student template.
const SampleStudentCSV = `email,name,company,purchase_date,access_level,status,notes
ada@example.com,Ada Lovelace,Analytical Engines,2025-01-15,Full Access,active,
grace@example.com,Grace Hopper,Compilers Inc,2025-01-20,sprint_ai_tools,onboarding,"Prefers async, no calls"
alan@example.com,Alan Turing,,,Curriculum Only,,
`

// Defaults for imported students.
const (
	DefaultAccessLevel   = AccessCurriculumOnly
	DefaultStudentStatus = StudentOnboarding
)

// StudentRow is one parsed student CSV row.
type StudentRow struct {
	Line         int           `json:"line"`
	Email        string        `json:"email"`
	Name         string        `json:"name,omitempty"`
	Company      string        `json:"company,omitempty"`
	PurchaseDate *time.Time    `json:"purchaseDate,omitempty"`
	AccessLevel  AccessLevel   `json:"accessLevel"`
	Status       StudentStatus `json:"status"`
	Notes        string        `json:"notes,omitempty"`

	// Duplicate is set by MarkDuplicates when the email already exists or
	// appears earlier in the same file.
	Duplicate bool `json:"duplicate"`
}

// Student converts the row into a storable student.
func (r StudentRow) Student() Student {
	return Student{
		Email:        r.Email,
		Name:         r.Name,
		Company:      r.Company,
		PurchaseDate: r.PurchaseDate,
		AccessLevel:  r.AccessLevel,
		Status:       r.Status,
		Notes:        r.Notes,
	}
}

// ParseStudentCSV parses a student roster. Emails are lowercased; an invalid
// email, date, access level or status fails the whole file.
func ParseStudentCSV(text string) ([]StudentRow, error) {
	table, err := readCSVTable(text, StudentColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]StudentRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		h := table.Header
		row := StudentRow{
			Line:        r.Line,
			Email:       strings.ToLower(h.Get(r.Cells, "email")),
			Name:        h.Get(r.Cells, "name"),
			Company:     h.Get(r.Cells, "company"),
			Notes:       h.Get(r.Cells, "notes"),
			AccessLevel: DefaultAccessLevel,
			Status:      DefaultStudentStatus,
		}

		if row.Email == "" {
			return nil, rowError(r.Line, "email", "required field is empty")
		}
		if !ValidEmail(row.Email) {
			return nil, rowError(r.Line, "email", "invalid email %q", row.Email)
		}

		if raw := h.Get(r.Cells, "purchase_date"); raw != "" {
			d, ok := ParseDate(raw)
			if !ok {
				return nil, rowError(r.Line, "purchase_date", "invalid date %q", raw)
			}
			row.PurchaseDate = &d
		}

		if raw := h.Get(r.Cells, "access_level"); raw != "" {
			a, ok := ParseAccessLevel(raw)
			if !ok {
				return nil, rowError(r.Line, "access_level", "invalid access level %q", raw)
			}
			row.AccessLevel = a
		}

		if raw := h.Get(r.Cells, "status"); raw != "" {
			s, ok := ParseStudentStatus(raw)
			if !ok {
				return nil, rowError(r.Line, "status", "invalid status %q", raw)
			}
			row.Status = s
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &ValidationError{Message: "file has no data rows"}
	}
	return rows, nil
}

// MarkDuplicates flags rows whose email matches an existing student or an
// earlier row in the file, comparing lowercase emails. It returns the
// number of new and duplicate rows.
func MarkDuplicates(rows []StudentRow, existing []Student) (newCount, dupCount int) {
	seen := make(map[string]bool, len(existing)+len(rows))
	for _, s := range existing {
		seen[strings.ToLower(strings.TrimSpace(s.Email))] = true
	}

	for i := range rows {
		key := strings.ToLower(rows[i].Email)
		rows[i].Duplicate = seen[key]
		if rows[i].Duplicate {
			dupCount++
		} else {
			newCount++
		}
		seen[key] = true
	}
	return newCount, dupCount
}
