package core

import (
	"context"
	"fmt"
	"strings"
)

// Progress reports how far an import or copy has come. Current counts
// creation calls made so far, Total the calls the run will make.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label,omitempty"`
}

// ProgressFunc receives progress after every creation call. It may be nil.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(current, total int, label string) {
	if f != nil {
		f(Progress{Current: current, Total: total, Label: label})
	}
}

// FailurePolicy decides what the curriculum importer does when a creation
// call fails.
type FailurePolicy string

const (
	// PolicyContinue records the failure and carries on. The children of a
	// failed week or lesson are counted as skipped.
	PolicyContinue FailurePolicy = "continue"

	// PolicyAbort stops at the first failure. Rows created before it stay.
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy maps a config value to a policy, defaulting to
// continue.
func ParseFailurePolicy(s string) FailurePolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(PolicyAbort)) {
		return PolicyAbort
	}
	return PolicyContinue
}

// RowFailure is a creation call that failed during an import.
type RowFailure struct {
	Line   int    `json:"line,omitempty"`
	Kind   string `json:"kind"` // week, lesson or item
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// CurriculumImportResult summarizes a curriculum import.
type CurriculumImportResult struct {
	WeeksCreated   int          `json:"weeksCreated"`
	LessonsCreated int          `json:"lessonsCreated"`
	ItemsCreated   int          `json:"itemsCreated"`
	Skipped        int          `json:"skipped"`
	Failed         []RowFailure `json:"failed,omitempty"`
}

// Created is the total number of rows written.
func (r CurriculumImportResult) Created() int {
	return r.WeeksCreated + r.LessonsCreated + r.ItemsCreated
}

// ImportCurriculum writes plan into cohortID, one creation call at a time:
// each week, then its lessons, then each lesson's items. Sort orders are
// 0-based and contiguous per parent; new weeks are appended after the
// cohort's existing weeks.
//
// Under PolicyAbort the first failure ends the run and is returned along
// with the partial result. Under PolicyContinue failures are collected in
// the result and the returned error is nil unless ctx is cancelled.
func ImportCurriculum(ctx context.Context, store CurriculumStore, cohortID string, plan CurriculumPlan, policy FailurePolicy, progress ProgressFunc) (CurriculumImportResult, error) {
	var result CurriculumImportResult

	existing, err := store.ListWeeks(ctx, cohortID)
	if err != nil {
		return result, fmt.Errorf("list existing weeks: %w", err)
	}
	weekOffset := len(existing)

	total := plan.Total()
	current := 0
	step := func(label string) {
		current++
		progress.report(current, total, label)
	}
	skip := func(n int, label string) {
		result.Skipped += n
		current += n
		progress.report(current, total, label)
	}

	fail := func(line int, kind, title string, err error) error {
		if policy == PolicyAbort {
			return fmt.Errorf("create %s %q: %w", kind, title, err)
		}
		result.Failed = append(result.Failed, RowFailure{Line: line, Kind: kind, Title: title, Reason: err.Error()})
		return nil
	}

	// Sort orders count created siblings so a failed row leaves no gap.
	for _, wd := range plan.Weeks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		weekID, err := store.InsertWeek(ctx, Week{
			CohortID:  cohortID,
			Title:     wd.Title,
			SortOrder: weekOffset + result.WeeksCreated,
		})
		step(wd.Title)
		if err != nil {
			if ferr := fail(firstLine(wd), "week", wd.Title, err); ferr != nil {
				return result, ferr
			}
			skip(weekChildren(wd), wd.Title)
			continue
		}
		result.WeeksCreated++

		lessonSort := 0
		for _, ld := range wd.Lessons {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			lessonID, err := store.InsertLesson(ctx, Lesson{
				WeekID:    weekID,
				Title:     ld.Title,
				SortOrder: lessonSort,
			})
			step(ld.Title)
			if err != nil {
				line := 0
				if len(ld.Items) > 0 {
					line = ld.Items[0].Line
				}
				if ferr := fail(line, "lesson", ld.Title, err); ferr != nil {
					return result, ferr
				}
				skip(len(ld.Items), ld.Title)
				continue
			}
			result.LessonsCreated++
			lessonSort++

			itemSort := 0
			for _, item := range ld.Items {
				if err := ctx.Err(); err != nil {
					return result, err
				}

				_, err := store.InsertContentItem(ctx, item.ContentItem(lessonID, itemSort))
				step(item.Title)
				if err != nil {
					if ferr := fail(item.Line, "item", item.Title, err); ferr != nil {
						return result, ferr
					}
					continue
				}
				result.ItemsCreated++
				itemSort++
			}
		}
	}

	return result, nil
}

func weekChildren(w WeekDraft) int {
	n := len(w.Lessons)
	for _, l := range w.Lessons {
		n += len(l.Items)
	}
	return n
}

func firstLine(w WeekDraft) int {
	for _, l := range w.Lessons {
		if len(l.Items) > 0 {
			return l.Items[0].Line
		}
	}
	return 0
}
