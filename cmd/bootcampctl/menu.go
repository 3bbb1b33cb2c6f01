package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/tui"
)

// MenuTimeout bounds each menu action.
var MenuTimeout = 30 * time.Second

func buildMenu(ctx context.Context, svc *core.Service) *tui.Menu {
	return tui.NewMenuTree(&tui.Menu{
		Title: "Bootcamp",
		Items: []tui.MenuItem{
			{Label: "Cohorts", Action: action(ctx, func(ctx context.Context) (string, error) {
				return describeCohorts(ctx, svc)
			})},
			{Label: "Import status", Action: action(ctx, func(context.Context) (string, error) {
				st := svc.ImportStatus()
				return fmt.Sprintf("%d running, %d of %d slots free", st.Active, st.Available, st.MaxConcurrent), nil
			})},
			{Label: "Samples ->", Submenu: &tui.Menu{
				Title: "Samples",
				Items: []tui.MenuItem{
					{Label: "Write curriculum sample", Action: writeSample("curriculum")},
					{Label: "Write students sample", Action: writeSample("students")},
					{Label: "Back"},
				},
			}},
			{Label: "Audit ->", Submenu: &tui.Menu{
				Title: "Audit",
				Items: []tui.MenuItem{
					{Label: "Recent entries", Action: action(ctx, func(ctx context.Context) (string, error) {
						return describeAudit(ctx, svc, 5)
					})},
					{Label: "Back"},
				},
			}},
			{Label: "Back"},
		},
	})
}

// action runs fn in a command with MenuTimeout and reports its text.
func action(ctx context.Context, fn func(context.Context) (string, error)) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, MenuTimeout)
			defer cancel()

			text, err := fn(ctx)
			if err != nil {
				return tui.ErrMsg{Err: err}
			}
			return tui.DoneMsg(text)
		}
	}
}

func writeSample(kind string) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			def, ok := core.GetImporter(kind)
			if !ok {
				return tui.ErrMsg{Err: fmt.Errorf("%q: no such importer", kind)}
			}
			if err := os.WriteFile(def.Info.SampleFilename, []byte(def.SampleCSV), 0o644); err != nil {
				return tui.ErrMsg{Err: err}
			}
			return tui.DoneMsg("wrote " + def.Info.SampleFilename)
		}
	}
}

func describeCohorts(ctx context.Context, svc *core.Service) (string, error) {
	summaries, err := svc.CohortSummaries(ctx)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "no cohorts yet", nil
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("%s [%s] %d weeks, %d students", s.Name, s.Status, s.Weeks, s.Students))
	}
	return strings.Join(lines, "\n"), nil
}

func describeAudit(ctx context.Context, svc *core.Service, limit int) (string, error) {
	entries, err := svc.AuditLog(ctx, core.AuditFilter{Limit: limit})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "audit log is empty", nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s %s %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action, e.Actor, e.Summary))
	}
	return strings.Join(lines, "\n"), nil
}
