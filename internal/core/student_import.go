package core

import (
	"context"
	"strings"
)

// StudentImportOptions controls a student import.
type StudentImportOptions struct {
	// CohortID, when set, enrolls every created student into the cohort.
	CohortID string `json:"cohortId,omitempty"`

	// IncludeDuplicates attempts duplicate rows anyway; the store's unique
	// email constraint is expected to reject true duplicates.
	IncludeDuplicates bool `json:"includeDuplicates"`
}

// ImportFailure is a row that could not be created or enrolled.
type ImportFailure struct {
	Line   int    `json:"line,omitempty"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// StudentImportResult summarizes a student import. A row can be created
// but not enrolled; it then counts in Created and appears in EnrollFailed.
type StudentImportResult struct {
	Created      int             `json:"created"`
	Skipped      int             `json:"skipped"`
	Failed       []ImportFailure `json:"failed"`
	EnrollFailed []ImportFailure `json:"enrollFailed"`
}

// StudentImportPreview is what the operator confirms before importing.
type StudentImportPreview struct {
	Rows       []StudentRow `json:"rows"`
	New        int          `json:"new"`
	Duplicates int          `json:"duplicates"`
}

// ImportStudents creates students row by row. Each creation and each
// enrollment is attempted independently: failures are recorded and the loop
// moves on. Rows must have been through MarkDuplicates; duplicates are
// skipped unless opts.IncludeDuplicates is set.
func ImportStudents(ctx context.Context, students StudentStore, enrollments EnrollmentStore, rows []StudentRow, opts StudentImportOptions, progress ProgressFunc) (StudentImportResult, error) {
	result := StudentImportResult{Failed: []ImportFailure{}, EnrollFailed: []ImportFailure{}}
	total := len(rows)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if row.Duplicate && !opts.IncludeDuplicates {
			result.Skipped++
			progress.report(i+1, total, row.Email)
			continue
		}

		id, err := students.InsertStudent(ctx, row.Student())
		if err != nil {
			result.Failed = append(result.Failed, ImportFailure{Line: row.Line, Email: row.Email, Reason: err.Error()})
			progress.report(i+1, total, row.Email)
			continue
		}
		result.Created++

		if strings.TrimSpace(opts.CohortID) != "" {
			if err := enrollments.Enroll(ctx, id, opts.CohortID); err != nil {
				result.EnrollFailed = append(result.EnrollFailed, ImportFailure{Line: row.Line, Email: row.Email, Reason: err.Error()})
			}
		}
		progress.report(i+1, total, row.Email)
	}

	return result, nil
}
