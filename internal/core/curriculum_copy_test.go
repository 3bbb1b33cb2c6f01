package core

import (
	"context"
	"errors"
	"testing"
)

// seedCopySource builds one week holding a recording-only lesson, a mixed
// lesson and an action item.
func seedCopySource(t *testing.T, store *memStore) string {
	t.Helper()
	ctx := context.Background()
	cohortID := store.addCohort("Source")

	weekID, err := store.InsertWeek(ctx, Week{CohortID: cohortID, Title: "Week 1", Description: "Intro"})
	if err != nil {
		t.Fatal(err)
	}
	recID, _ := store.InsertLesson(ctx, Lesson{WeekID: weekID, Title: "Session Recording", SortOrder: 0})
	_, _ = store.InsertContentItem(ctx, ContentItem{LessonID: recID, Type: ContentVideo, Title: "Call 1", SortOrder: 0})

	toolsID, _ := store.InsertLesson(ctx, Lesson{WeekID: weekID, Title: "Tools", SortOrder: 1})
	_, _ = store.InsertContentItem(ctx, ContentItem{LessonID: toolsID, Type: ContentVideo, Title: "Demo", SortOrder: 0})
	_, _ = store.InsertContentItem(ctx, ContentItem{LessonID: toolsID, Type: ContentGuide, Title: "Setup guide", SortOrder: 1})

	_, _ = store.InsertActionItem(ctx, ActionItem{WeekID: weekID, Title: "Join Slack", DueLabel: "Day 1"})
	store.calls = nil
	return cohortID
}

func TestIsRecordingOnly(t *testing.T) {
	video := ContentItem{Type: ContentVideo}
	guide := ContentItem{Type: ContentGuide}

	tests := []struct {
		name  string
		title string
		items []ContentItem
		want  bool
	}{
		{"all videos", "Week 1 Recording", []ContentItem{video, video}, true},
		{"case insensitive", "RECORDINGS", []ContentItem{video}, true},
		{"mixed items", "Recording", []ContentItem{video, guide}, false},
		{"no items", "Recording", nil, false},
		{"title without keyword", "Kickoff", []ContentItem{video}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecordingOnly(tt.title, tt.items); got != tt.want {
				t.Errorf("IsRecordingOnly(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestPreviewCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	src := seedCopySource(t, store)
	dst := store.addCohort("Target")

	tests := []struct {
		name    string
		exclude bool
		want    CopyPreview
	}{
		{"everything", false, CopyPreview{Weeks: 1, Lessons: 2, Items: 3, ActionItems: 1}},
		{"exclude recordings", true, CopyPreview{Weeks: 1, Lessons: 1, Items: 1, ActionItems: 1, SkippedLessons: 1, SkippedItems: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreviewCopy(ctx, store, CopyOptions{SourceCohortID: src, TargetCohortID: dst, ExcludeRecordings: tt.exclude})
			if err != nil {
				t.Fatalf("PreviewCopy() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PreviewCopy() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if len(store.calls) != 0 {
		t.Errorf("preview wrote %v", store.calls)
	}
}

func TestCopyCurriculum_MatchesPreview(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	src := seedCopySource(t, store)
	dst := store.addCohort("Target")
	if _, err := store.InsertWeek(ctx, Week{CohortID: dst, Title: "Existing"}); err != nil {
		t.Fatal(err)
	}

	opts := CopyOptions{SourceCohortID: src, TargetCohortID: dst, ExcludeRecordings: true}
	preview, err := PreviewCopy(ctx, store, opts)
	if err != nil {
		t.Fatal(err)
	}

	var last Progress
	created, err := CopyCurriculum(ctx, store, opts, func(p Progress) { last = p })
	if err != nil {
		t.Fatalf("CopyCurriculum() error = %v", err)
	}
	if created != preview {
		t.Errorf("created = %+v, want preview %+v", created, preview)
	}
	if last.Current != preview.Total() || last.Total != preview.Total() {
		t.Errorf("final progress = %d/%d, want %d", last.Current, last.Total, preview.Total())
	}

	tree, err := LoadCurriculum(ctx, store, dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Weeks) != 2 || tree.Weeks[1].Title != "Week 1" || tree.Weeks[1].SortOrder != 1 {
		t.Fatalf("target weeks = %+v", tree.Weeks)
	}
	copied := tree.Weeks[1]
	if copied.Description != "Intro" {
		t.Errorf("week description = %q, want Intro", copied.Description)
	}
	if len(copied.Lessons) != 1 || copied.Lessons[0].Title != "Tools" || copied.Lessons[0].SortOrder != 0 {
		t.Fatalf("lessons = %+v", copied.Lessons)
	}
	if items := copied.Lessons[0].Items; len(items) != 1 || items[0].Title != "Setup guide" || items[0].SortOrder != 0 {
		t.Errorf("items = %+v", items)
	}
	if len(copied.ActionItems) != 1 || copied.ActionItems[0].DueLabel != "Day 1" {
		t.Errorf("action items = %+v", copied.ActionItems)
	}

	// The source is untouched.
	srcTree, _ := LoadCurriculum(ctx, store, src)
	if len(srcTree.Weeks[0].Lessons) != 2 {
		t.Errorf("source lessons = %d, want 2", len(srcTree.Weeks[0].Lessons))
	}
}

func TestCopyCurriculum_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	src := seedCopySource(t, store)
	dst := store.addCohort("Target")
	store.failInsert = func(kind, title string) error {
		if kind == "lesson" && title == "Tools" {
			return errors.New("connection reset")
		}
		return nil
	}

	created, err := CopyCurriculum(ctx, store, CopyOptions{SourceCohortID: src, TargetCohortID: dst}, nil)
	if err == nil {
		t.Fatal("CopyCurriculum() error = nil, want failure")
	}
	if created.Weeks != 1 || created.Lessons != 1 || created.Items != 1 || created.ActionItems != 0 {
		t.Errorf("created = %+v, want 1 week, 1 lesson, 1 item", created)
	}
}

func TestCopyCurriculum_SameCohort(t *testing.T) {
	store := newMemStore()
	src := seedCopySource(t, store)

	_, err := CopyCurriculum(context.Background(), store, CopyOptions{SourceCohortID: src, TargetCohortID: src}, nil)
	if !errors.Is(err, ErrSameCohort) {
		t.Errorf("error = %v, want ErrSameCohort", err)
	}
	if _, err := PreviewCopy(context.Background(), store, CopyOptions{SourceCohortID: src, TargetCohortID: src}); !errors.Is(err, ErrSameCohort) {
		t.Errorf("PreviewCopy error = %v, want ErrSameCohort", err)
	}
}
