package core

import (
	"context"
	"errors"
	"testing"
)

func samplePlan(t *testing.T) CurriculumPlan {
	t.Helper()
	plan, err := ParseCurriculumCSV(SampleCurriculumCSV)
	if err != nil {
		t.Fatalf("ParseCurriculumCSV() error = %v", err)
	}
	return plan
}

// assertContiguous checks that sibling sort orders are 0..n-1.
func assertContiguous(t *testing.T, store *memStore, cohortID string) {
	t.Helper()
	ctx := context.Background()

	weeks, _ := store.ListWeeks(ctx, cohortID)
	for i, w := range weeks {
		if w.SortOrder != i {
			t.Errorf("week %q sort = %d, want %d", w.Title, w.SortOrder, i)
		}
		lessons, _ := store.ListLessons(ctx, w.ID)
		for j, l := range lessons {
			if l.SortOrder != j {
				t.Errorf("lesson %q sort = %d, want %d", l.Title, l.SortOrder, j)
			}
			items, _ := store.ListContentItems(ctx, l.ID)
			for k, it := range items {
				if it.SortOrder != k {
					t.Errorf("item %q sort = %d, want %d", it.Title, it.SortOrder, k)
				}
			}
		}
	}
}

func TestImportCurriculum_AppendsAfterExistingWeeks(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cohortID := store.addCohort("Spring")
	if _, err := store.InsertWeek(ctx, Week{CohortID: cohortID, Title: "Orientation", SortOrder: 0}); err != nil {
		t.Fatal(err)
	}

	var last Progress
	result, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyContinue, func(p Progress) { last = p })
	if err != nil {
		t.Fatalf("ImportCurriculum() error = %v", err)
	}

	if result.WeeksCreated != 2 || result.LessonsCreated != 3 || result.ItemsCreated != 6 {
		t.Errorf("result = %+v, want 2/3/6 created", result)
	}
	if result.Created() != 11 {
		t.Errorf("Created() = %d, want 11", result.Created())
	}
	if last.Current != 11 || last.Total != 11 {
		t.Errorf("final progress = %d/%d, want 11/11", last.Current, last.Total)
	}

	weeks, _ := store.ListWeeks(ctx, cohortID)
	if len(weeks) != 3 || weeks[0].Title != "Orientation" || weeks[1].Title != "Week 1: Foundations" {
		t.Fatalf("weeks = %+v", weeks)
	}
	assertContiguous(t, store, cohortID)
}

func TestImportCurriculum_ContinueSkipsChildren(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cohortID := store.addCohort("Spring")
	store.failInsert = func(kind, title string) error {
		if kind == "lesson" && title == "Welcome" {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	var last Progress
	result, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyContinue, func(p Progress) { last = p })
	if err != nil {
		t.Fatalf("ImportCurriculum() error = %v", err)
	}

	if result.WeeksCreated != 2 || result.LessonsCreated != 2 || result.ItemsCreated != 3 {
		t.Errorf("created = %d/%d/%d, want 2/2/3", result.WeeksCreated, result.LessonsCreated, result.ItemsCreated)
	}
	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}
	if len(result.Failed) != 1 || result.Failed[0].Kind != "lesson" || result.Failed[0].Line != 2 {
		t.Errorf("Failed = %+v, want the Welcome lesson at line 2", result.Failed)
	}
	if last.Current != last.Total {
		t.Errorf("final progress = %d/%d, want complete", last.Current, last.Total)
	}
	assertContiguous(t, store, cohortID)
}

func TestImportCurriculum_ContinueAfterItemFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cohortID := store.addCohort("Spring")
	store.failInsert = func(kind, title string) error {
		if kind == "item" && title == "Program overview" {
			return errors.New("duplicate key value")
		}
		return nil
	}

	result, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyContinue, nil)
	if err != nil {
		t.Fatalf("ImportCurriculum() error = %v", err)
	}
	if result.ItemsCreated != 5 || len(result.Failed) != 1 {
		t.Errorf("result = %+v, want 5 items and 1 failure", result)
	}
	assertContiguous(t, store, cohortID)
}

func TestImportCurriculum_AbortStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cohortID := store.addCohort("Spring")
	boom := errors.New("connection refused")
	store.failInsert = func(kind, title string) error {
		if kind == "item" && title == "Program overview" {
			return boom
		}
		return nil
	}

	result, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyAbort, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("ImportCurriculum() error = %v, want wrapping %v", err, boom)
	}
	if result.WeeksCreated != 1 || result.LessonsCreated != 1 || result.ItemsCreated != 1 {
		t.Errorf("partial result = %+v, want 1/1/1", result)
	}
	if got := store.calls[len(store.calls)-1]; got != "item:Program overview" {
		t.Errorf("last call = %q, want the failed item", got)
	}
}

func TestImportCurriculum_Cancelled(t *testing.T) {
	store := newMemStore()
	cohortID := store.addCohort("Spring")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyContinue, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(store.calls) != 0 {
		t.Errorf("calls = %v, want none", store.calls)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want FailurePolicy
	}{
		{"abort", PolicyAbort},
		{" ABORT ", PolicyAbort},
		{"continue", PolicyContinue},
		{"", PolicyContinue},
		{"anything", PolicyContinue},
	}
	for _, tt := range tests {
		if got := ParseFailurePolicy(tt.in); got != tt.want {
			t.Errorf("ParseFailurePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
