package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testTree(ran *int) *Menu {
	return NewMenuTree(&Menu{
		Title: "Main Menu",
		Items: []MenuItem{
			{Label: "Run", Action: func() tea.Cmd {
				*ran++
				return func() tea.Msg { return DoneMsg("ran") }
			}},
			{Label: "Samples ->", Submenu: &Menu{
				Title: "Samples",
				Items: []MenuItem{
					{Label: "Curriculum"},
					{Label: "Back"},
				},
			}},
			{Label: "Back"},
		},
	})
}

func TestNewMenuTreeLinksParents(t *testing.T) {
	var ran int
	root := testTree(&ran)
	sub := root.Items[1].Submenu

	if sub.Parent != root {
		t.Errorf("submenu parent = %v, want root", sub.Parent)
	}
	if sub.Items[1].Submenu != root {
		t.Error("submenu Back item does not point at root")
	}
	if root.Items[2].Submenu != nil {
		t.Error("root Back item should have no target")
	}
}

func update(m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.Update(msg)
}

func TestMenuNavigation(t *testing.T) {
	var ran int
	root := testTree(&ran)
	var m tea.Model = NewMenuModel(root)

	m, _ = update(m, key("down"))
	m, _ = update(m, key("enter"))
	if got := m.(MenuModel).Current().Title; got != "Samples" {
		t.Fatalf("after enter, menu = %q, want Samples", got)
	}

	m, _ = update(m, key("esc"))
	if got := m.(MenuModel).Current().Title; got != "Main Menu" {
		t.Fatalf("after esc, menu = %q, want Main Menu", got)
	}

	m, _ = update(m, key("up"))
	m, cmd := update(m, key("enter"))
	if ran != 1 {
		t.Fatalf("action ran %d times, want 1", ran)
	}
	if cmd == nil {
		t.Fatal("action returned no command")
	}
	if !strings.Contains(m.View(), "working") {
		t.Errorf("view while busy = %q, want spinner", m.View())
	}

	// Selections are ignored until the action reports back.
	m, _ = update(m, key("enter"))
	if ran != 1 {
		t.Errorf("action ran %d times while busy, want 1", ran)
	}

	m, _ = update(m, DoneMsg("ran"))
	if !strings.Contains(m.View(), "ran") {
		t.Errorf("view after done = %q, want status", m.View())
	}

	m, _ = update(m, ErrMsg{Err: errors.New("boom")})
	if !strings.Contains(m.View(), "Error: boom") {
		t.Errorf("view after error = %q, want error", m.View())
	}
}

func TestMenuQuit(t *testing.T) {
	var ran int
	m := NewMenuModel(testTree(&ran))

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestImportModel(t *testing.T) {
	updates := make(chan core.JobProgress, 4)
	want := &core.JobResult{
		Kind:       core.JobCurriculumImport,
		Curriculum: &core.CurriculumImportResult{WeeksCreated: 2, LessonsCreated: 3, ItemsCreated: 7},
	}
	var cancelled bool
	var m tea.Model = NewImportModel("Import curriculum", updates,
		func() (*core.JobResult, error) { return want, nil },
		func() { cancelled = true },
	)

	if !strings.Contains(m.View(), "waiting for an import slot") {
		t.Errorf("initial view = %q", m.View())
	}

	m, cmd := update(m, progressMsg{Phase: core.PhaseRunning, Current: 3, Total: 12, Label: "Week 1"})
	if cmd == nil {
		t.Fatal("progress did not wait for the next update")
	}
	if !strings.Contains(m.View(), "3 of 12") {
		t.Errorf("running view = %q, want counts", m.View())
	}

	m, _ = update(m, key("q"))
	if !cancelled {
		t.Error("q did not cancel the job")
	}

	m, cmd = update(m, streamClosedMsg{})
	msg := cmd()
	res, ok := msg.(resultMsg)
	if !ok {
		t.Fatalf("stream close produced %T, want resultMsg", msg)
	}

	m, cmd = update(m, res)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("result did not quit")
	}
	got, err := m.(ImportModel).Result()
	if err != nil || got != want {
		t.Errorf("Result() = %v, %v, want %v", got, err, want)
	}
	if !strings.Contains(m.View(), "Created 2 weeks, 3 lessons, 7 items") {
		t.Errorf("final view = %q, want summary", m.View())
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name   string
		result *core.JobResult
		want   []string
	}{
		{
			"curriculum with failures",
			&core.JobResult{Curriculum: &core.CurriculumImportResult{
				WeeksCreated: 1,
				Skipped:      2,
				Failed:       []core.RowFailure{{Kind: "item", Title: "Intro", Reason: "bad url"}},
			}},
			[]string{"Created 1 weeks", "Skipped 2", `Failed item "Intro": bad url`},
		},
		{
			"students",
			&core.JobResult{Students: &core.StudentImportResult{
				Created:      4,
				Skipped:      1,
				EnrollFailed: []core.ImportFailure{{Email: "a@x.io", Reason: "no cohort"}},
			}},
			[]string{"Created 4 students, skipped 1", "Not enrolled a@x.io: no cohort"},
		},
		{
			"copy",
			&core.JobResult{Copy: &core.CopyPreview{Weeks: 2, Lessons: 4, Items: 9, ActionItems: 1}},
			[]string{"Copied 2 weeks, 4 lessons, 9 items, 1 action items"},
		},
		{
			"failed job",
			&core.JobResult{Error: "context canceled", Duration: 1500 * time.Millisecond},
			[]string{"Error: context canceled", "Took 1.5s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summary(tt.result)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Summary() = %q, missing %q", got, w)
				}
			}
		})
	}
}
