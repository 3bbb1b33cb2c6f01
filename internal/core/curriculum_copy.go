package core

import (
	"context"
	"fmt"
	"strings"
)

// LessonNode is a lesson with its content items.
type LessonNode struct {
	Lesson
	Items []ContentItem `json:"items"`
}

// WeekNode is a week with its lessons and action items.
type WeekNode struct {
	Week
	Lessons     []LessonNode `json:"lessons"`
	ActionItems []ActionItem `json:"actionItems"`
}

// CurriculumTree is a cohort's whole curriculum in sort order.
type CurriculumTree struct {
	CohortID string     `json:"cohortId"`
	Weeks    []WeekNode `json:"weeks"`
}

// LoadCurriculum reads a cohort's curriculum one parent at a time.
func LoadCurriculum(ctx context.Context, r CurriculumReader, cohortID string) (CurriculumTree, error) {
	tree := CurriculumTree{CohortID: cohortID}

	weeks, err := r.ListWeeks(ctx, cohortID)
	if err != nil {
		return tree, fmt.Errorf("list weeks: %w", err)
	}

	for _, w := range weeks {
		node := WeekNode{Week: w}

		lessons, err := r.ListLessons(ctx, w.ID)
		if err != nil {
			return tree, fmt.Errorf("list lessons for week %s: %w", w.ID, err)
		}
		for _, l := range lessons {
			items, err := r.ListContentItems(ctx, l.ID)
			if err != nil {
				return tree, fmt.Errorf("list items for lesson %s: %w", l.ID, err)
			}
			node.Lessons = append(node.Lessons, LessonNode{Lesson: l, Items: items})
		}

		actions, err := r.ListActionItems(ctx, w.ID)
		if err != nil {
			return tree, fmt.Errorf("list action items for week %s: %w", w.ID, err)
		}
		node.ActionItems = actions

		tree.Weeks = append(tree.Weeks, node)
	}

	return tree, nil
}

// IsRecordingOnly reports whether a lesson is a session recording: its
// title mentions "recording" and it has at least one item, all videos.
func IsRecordingOnly(title string, items []ContentItem) bool {
	if !strings.Contains(strings.ToLower(title), "recording") || len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Type != ContentVideo {
			return false
		}
	}
	return true
}

// CopyOptions selects what a cross-cohort copy does.
type CopyOptions struct {
	SourceCohortID    string `json:"sourceCohortId" validate:"required"`
	TargetCohortID    string `json:"targetCohortId" validate:"required"`
	ExcludeRecordings bool   `json:"excludeRecordings"`
}

// CopyPreview counts what a copy writes and what it leaves out.
type CopyPreview struct {
	Weeks          int `json:"weeks"`
	Lessons        int `json:"lessons"`
	Items          int `json:"items"`
	ActionItems    int `json:"actionItems"`
	SkippedLessons int `json:"skippedLessons"`
	SkippedItems   int `json:"skippedItems"`
}

// Total is the number of creation calls the copy makes.
func (p CopyPreview) Total() int {
	return p.Weeks + p.Lessons + p.Items + p.ActionItems
}

// copyPlan is the filtered source tree. Skipped lessons and items are
// already removed.
func copyPlan(src CurriculumTree, excludeRecordings bool) (CurriculumTree, CopyPreview) {
	var (
		plan    = CurriculumTree{CohortID: src.CohortID}
		preview CopyPreview
	)

	for _, w := range src.Weeks {
		node := WeekNode{Week: w.Week, ActionItems: w.ActionItems}
		preview.Weeks++
		preview.ActionItems += len(w.ActionItems)

		for _, l := range w.Lessons {
			if excludeRecordings && IsRecordingOnly(l.Title, l.Items) {
				preview.SkippedLessons++
				preview.SkippedItems += len(l.Items)
				continue
			}

			kept := LessonNode{Lesson: l.Lesson}
			for _, it := range l.Items {
				if excludeRecordings && it.Type == ContentVideo {
					preview.SkippedItems++
					continue
				}
				kept.Items = append(kept.Items, it)
			}
			preview.Lessons++
			preview.Items += len(kept.Items)
			node.Lessons = append(node.Lessons, kept)
		}

		plan.Weeks = append(plan.Weeks, node)
	}

	return plan, preview
}

// PreviewCopy counts what CopyCurriculum would do without writing.
func PreviewCopy(ctx context.Context, r CurriculumReader, opts CopyOptions) (CopyPreview, error) {
	if opts.SourceCohortID == opts.TargetCohortID {
		return CopyPreview{}, ErrSameCohort
	}
	src, err := LoadCurriculum(ctx, r, opts.SourceCohortID)
	if err != nil {
		return CopyPreview{}, err
	}
	_, preview := copyPlan(src, opts.ExcludeRecordings)
	return preview, nil
}

// CopyCurriculum copies the source cohort's curriculum into the target. It
// makes the same walk as PreviewCopy with creation calls: weeks (appended
// after the target's existing weeks), their lessons and items, then their
// action items. The first failed call ends the run; the returned preview
// counts what was created before it.
func CopyCurriculum(ctx context.Context, store CurriculumStore, opts CopyOptions, progress ProgressFunc) (CopyPreview, error) {
	var created CopyPreview

	if opts.SourceCohortID == opts.TargetCohortID {
		return created, ErrSameCohort
	}

	src, err := LoadCurriculum(ctx, store, opts.SourceCohortID)
	if err != nil {
		return created, err
	}
	plan, preview := copyPlan(src, opts.ExcludeRecordings)
	created.SkippedLessons = preview.SkippedLessons
	created.SkippedItems = preview.SkippedItems

	existing, err := store.ListWeeks(ctx, opts.TargetCohortID)
	if err != nil {
		return created, fmt.Errorf("list target weeks: %w", err)
	}

	total := preview.Total()
	current := 0
	step := func(label string) {
		current++
		progress.report(current, total, label)
	}

	for wi, w := range plan.Weeks {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		weekID, err := store.InsertWeek(ctx, Week{
			CohortID:    opts.TargetCohortID,
			Title:       w.Title,
			Description: w.Description,
			SortOrder:   len(existing) + wi,
		})
		if err != nil {
			return created, fmt.Errorf("copy week %q: %w", w.Title, err)
		}
		created.Weeks++
		step(w.Title)

		for li, l := range w.Lessons {
			lessonID, err := store.InsertLesson(ctx, Lesson{
				WeekID:      weekID,
				Title:       l.Title,
				Description: l.Description,
				SortOrder:   li,
			})
			if err != nil {
				return created, fmt.Errorf("copy lesson %q: %w", l.Title, err)
			}
			created.Lessons++
			step(l.Title)

			for ii, it := range l.Items {
				it.ID = ""
				it.LessonID = lessonID
				it.SortOrder = ii
				if _, err := store.InsertContentItem(ctx, it); err != nil {
					return created, fmt.Errorf("copy item %q: %w", it.Title, err)
				}
				created.Items++
				step(it.Title)
			}
		}

		for ai, a := range w.ActionItems {
			a.ID = ""
			a.WeekID = weekID
			a.SortOrder = ai
			if _, err := store.InsertActionItem(ctx, a); err != nil {
				return created, fmt.Errorf("copy action item %q: %w", a.Title, err)
			}
			created.ActionItems++
			step(a.Title)
		}
	}

	return created, nil
}
