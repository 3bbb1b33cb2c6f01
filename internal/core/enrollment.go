package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrEnrollmentSync marks a two-phase student update whose profile was
// saved but whose cohort sync did not fully apply. The profile change is
// not reverted.
var ErrEnrollmentSync = errors.New("student saved but enrollment failed")

// EnrollmentDiff is the set of calls that turn current into desired.
type EnrollmentDiff struct {
	ToEnroll   []string `json:"toEnroll"`
	ToUnenroll []string `json:"toUnenroll"`
}

// Empty reports whether nothing needs to change.
func (d EnrollmentDiff) Empty() bool {
	return len(d.ToEnroll) == 0 && len(d.ToUnenroll) == 0
}

// DiffEnrollments computes desired - current (in desired order) and
// current - desired (in current order). Repeated ids collapse.
func DiffEnrollments(current, desired []string) EnrollmentDiff {
	cur := make(map[string]bool, len(current))
	for _, id := range current {
		cur[id] = true
	}
	want := make(map[string]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}

	diff := EnrollmentDiff{ToEnroll: []string{}, ToUnenroll: []string{}}
	added := map[string]bool{}
	for _, id := range desired {
		if id == "" || cur[id] || added[id] {
			continue
		}
		added[id] = true
		diff.ToEnroll = append(diff.ToEnroll, id)
	}
	removed := map[string]bool{}
	for _, id := range current {
		if want[id] || removed[id] {
			continue
		}
		removed[id] = true
		diff.ToUnenroll = append(diff.ToUnenroll, id)
	}
	return diff
}

// SyncFailure is one enroll or unenroll call that failed.
type SyncFailure struct {
	CohortID string `json:"cohortId"`
	Op       string `json:"op"` // enroll or unenroll
	Reason   string `json:"reason"`
}

// SyncResult reports what a reconciliation changed.
type SyncResult struct {
	Enrolled   []string      `json:"enrolled"`
	Unenrolled []string      `json:"unenrolled"`
	Failed     []SyncFailure `json:"failed,omitempty"`
}

// SyncEnrollments makes a student's cohort set equal desired, one call at a
// time: enrolls first, then unenrolls. Every call is attempted even after a
// failure; failures are returned joined. Cohorts present in both sets are
// never touched.
func SyncEnrollments(ctx context.Context, store EnrollmentStore, studentID string, current, desired []string) (SyncResult, error) {
	diff := DiffEnrollments(current, desired)
	result := SyncResult{Enrolled: []string{}, Unenrolled: []string{}}

	var errs []error
	for _, cohortID := range diff.ToEnroll {
		if err := store.Enroll(ctx, studentID, cohortID); err != nil {
			result.Failed = append(result.Failed, SyncFailure{CohortID: cohortID, Op: "enroll", Reason: err.Error()})
			errs = append(errs, fmt.Errorf("enroll in %s: %w", cohortID, err))
			continue
		}
		result.Enrolled = append(result.Enrolled, cohortID)
	}
	for _, cohortID := range diff.ToUnenroll {
		if err := store.Unenroll(ctx, studentID, cohortID); err != nil {
			result.Failed = append(result.Failed, SyncFailure{CohortID: cohortID, Op: "unenroll", Reason: err.Error()})
			errs = append(errs, fmt.Errorf("unenroll from %s: %w", cohortID, err))
			continue
		}
		result.Unenrolled = append(result.Unenrolled, cohortID)
	}

	return result, errors.Join(errs...)
}

// CohortIDs extracts the cohort ids from a list of enrollments.
func CohortIDs(enrollments []Enrollment) []string {
	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.CohortID
	}
	return ids
}
