package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCurriculumCSV_RoundTrip(t *testing.T) {
	store := newMemStore()
	cohortID := store.addCohort("Spring")
	ctx := context.Background()

	plan := samplePlan(t)
	if _, err := ImportCurriculum(ctx, store, cohortID, plan, PolicyContinue, nil); err != nil {
		t.Fatalf("ImportCurriculum() error = %v", err)
	}

	tree, err := LoadCurriculum(ctx, store, cohortID)
	if err != nil {
		t.Fatal(err)
	}
	text := CurriculumCSV(tree)

	again, err := ParseCurriculumCSV(text)
	if err != nil {
		t.Fatalf("re-parse exported CSV: %v\n%s", err, text)
	}

	if again.String() != plan.String() {
		t.Fatalf("round trip = %s, want %s", again, plan)
	}
	for wi, w := range plan.Weeks {
		if again.Weeks[wi].Title != w.Title {
			t.Errorf("week %d title = %q, want %q", wi, again.Weeks[wi].Title, w.Title)
		}
		for li, l := range w.Lessons {
			if again.Weeks[wi].Lessons[li].Title != l.Title {
				t.Errorf("lesson %q title = %q", l.Title, again.Weeks[wi].Lessons[li].Title)
			}
			for ii, it := range l.Items {
				got := again.Weeks[wi].Lessons[li].Items[ii]
				got.Line, it.Line = 0, 0
				if got != it {
					t.Errorf("item %q = %+v, want %+v", it.Title, got, it)
				}
			}
		}
	}
}

func TestCurriculumCSV_SkipsEmptyAndFoldsLines(t *testing.T) {
	tree := CurriculumTree{Weeks: []WeekNode{
		{Week: Week{Title: "Empty week"}},
		{
			Week: Week{Title: "Week 2"},
			Lessons: []LessonNode{
				{Lesson: Lesson{Title: "No items"}},
				{
					Lesson: Lesson{Title: "Tools"},
					Items: []ContentItem{
						{Type: ContentAITool, Title: "Writer", AIToolSlug: "copywriter"},
						{Type: ContentText, Title: "Notes", TextBody: "line one\nline two"},
						{Type: ContentCredentials, Title: "Login", Credentials: &Credentials{LoginURL: "https://app.example.com"}},
					},
				},
			},
			ActionItems: []ActionItem{{Title: "Join Slack"}},
		},
	}}

	got := CurriculumCSV(tree)
	want := "week,lesson,title,type,url,description\n" +
		"Week 2,Tools,Writer,ai_tool,copywriter,\n" +
		"Week 2,Tools,Notes,text,,line one line two\n" +
		"Week 2,Tools,Login,credentials,https://app.example.com,\n"
	if got != want {
		t.Errorf("CurriculumCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestCurriculumPDF(t *testing.T) {
	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	cohort := Cohort{Name: "Spring Cohort", StartDate: &start}

	tests := []struct {
		name string
		tree CurriculumTree
	}{
		{"empty", CurriculumTree{}},
		{"with content", CurriculumTree{Weeks: []WeekNode{{
			Week: Week{Title: "Week 1"},
			Lessons: []LessonNode{
				{Lesson: Lesson{Title: "Welcome"}, Items: []ContentItem{{Type: ContentVideo, Title: "Kickoff"}}},
				{Lesson: Lesson{Title: "Empty"}},
			},
			ActionItems: []ActionItem{{Title: "Join Slack", DueLabel: "Day 1"}},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf, err := CurriculumPDF(cohort, tt.tree)
			if err != nil {
				t.Fatalf("CurriculumPDF() error = %v", err)
			}
			if !bytes.HasPrefix(pdf, []byte("%PDF")) {
				t.Errorf("output starts with %q, want %%PDF", pdf[:min(len(pdf), 8)])
			}
		})
	}
}

func TestService_ExportCurriculum(t *testing.T) {
	svc, store := newTestService(t)
	cohortID := store.addCohort("Spring")
	ctx := context.Background()

	if _, err := ImportCurriculum(ctx, store, cohortID, samplePlan(t), PolicyContinue, nil); err != nil {
		t.Fatal(err)
	}

	got, text, err := svc.ExportCurriculumCSV(ctx, cohortID)
	if err != nil {
		t.Fatalf("ExportCurriculumCSV() error = %v", err)
	}
	if got.ID != cohortID || strings.Count(text, "\n") != 7 {
		t.Errorf("export = %q with %d lines, want 7", got.ID, strings.Count(text, "\n"))
	}

	if _, _, err := svc.ExportCurriculumPDF(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing cohort error = %v, want ErrNotFound", err)
	}
}

func TestReadCSVInput(t *testing.T) {
	text, err := ReadCSVInput(strings.NewReader("\ufeffemail\nada@example.com\n"), 64)
	if err != nil {
		t.Fatalf("ReadCSVInput() error = %v", err)
	}
	if text != "email\nada@example.com\n" {
		t.Errorf("ReadCSVInput() = %q, want BOM stripped", text)
	}

	exact := strings.Repeat("a", 16)
	if _, err := ReadCSVInput(strings.NewReader(exact), 16); err != nil {
		t.Errorf("input at the limit error = %v", err)
	}
	if _, err := ReadCSVInput(strings.NewReader(exact+"a"), 16); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("input over the limit error = %v, want ErrFileTooLarge", err)
	}
}
