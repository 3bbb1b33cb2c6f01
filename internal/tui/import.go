package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// ResultTimeout bounds the wait for a job's result once its progress
// stream has closed.
var ResultTimeout = 30 * time.Second

type progressMsg core.JobProgress

type streamClosedMsg struct{}

type resultMsg struct {
	result *core.JobResult
	err    error
}

// ImportModel follows one import job: a spinner until rows start, then a
// progress bar, then a summary of the result.
type ImportModel struct {
	title   string
	updates <-chan core.JobProgress
	fetch   func() (*core.JobResult, error)
	cancel  func()

	spinner    spinner.Model
	bar        progress.Model
	progress   core.JobProgress
	result     *core.JobResult
	err        error
	cancelling bool
}

// NewImportModel builds the view over a progress stream. fetch is called
// once the stream closes; cancel is called when the user quits early.
func NewImportModel(title string, updates <-chan core.JobProgress, fetch func() (*core.JobResult, error), cancel func()) ImportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return ImportModel{
		title:   title,
		updates: updates,
		fetch:   fetch,
		cancel:  cancel,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
	}
}

func (m ImportModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForProgress(m.updates))
}

func waitForProgress(ch <-chan core.JobProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return progressMsg(p)
	}
}

func (m ImportModel) fetchResult() tea.Cmd {
	return func() tea.Msg {
		result, err := m.fetch()
		return resultMsg{result: result, err: err}
	}
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.result != nil || m.err != nil {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case progressMsg:
		m.progress = core.JobProgress(msg)
		return m, waitForProgress(m.updates)

	case streamClosedMsg:
		return m, m.fetchResult()

	case resultMsg:
		m.result, m.err = msg.result, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.result != nil || m.err != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ImportModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render("Error: " + m.err.Error()))
	case m.result != nil:
		b.WriteString(summaryStyle.Render(Summary(m.result)))
	case m.progress.Total == 0:
		b.WriteString(m.spinner.View() + " " + phaseLabel(m.progress))
	default:
		b.WriteString(m.bar.ViewAs(float64(m.progress.Percent()) / 100))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d of %d  %s", m.progress.Current, m.progress.Total, m.progress.Label)))
	}

	b.WriteString("\n")
	if m.cancelling && m.result == nil {
		b.WriteString(mutedStyle.Render("cancelling..."))
		b.WriteString("\n")
	}
	return b.String()
}

// Result returns the job result and any error once the model has quit.
func (m ImportModel) Result() (*core.JobResult, error) { return m.result, m.err }

func phaseLabel(p core.JobProgress) string {
	if p.Phase == "" || p.Phase == core.PhaseStarting {
		return "waiting for an import slot"
	}
	return string(p.Phase)
}

// Summary describes a finished job in a few lines.
func Summary(r *core.JobResult) string {
	var lines []string
	switch {
	case r.Curriculum != nil:
		c := r.Curriculum
		lines = append(lines, fmt.Sprintf("Created %d weeks, %d lessons, %d items", c.WeeksCreated, c.LessonsCreated, c.ItemsCreated))
		if c.Skipped > 0 {
			lines = append(lines, fmt.Sprintf("Skipped %d", c.Skipped))
		}
		for _, f := range c.Failed {
			lines = append(lines, fmt.Sprintf("Failed %s %q: %s", f.Kind, f.Title, f.Reason))
		}
	case r.Students != nil:
		st := r.Students
		lines = append(lines, fmt.Sprintf("Created %d students, skipped %d", st.Created, st.Skipped))
		for _, f := range st.Failed {
			lines = append(lines, fmt.Sprintf("Failed %s: %s", f.Email, f.Reason))
		}
		for _, f := range st.EnrollFailed {
			lines = append(lines, fmt.Sprintf("Not enrolled %s: %s", f.Email, f.Reason))
		}
	case r.Copy != nil:
		cp := r.Copy
		lines = append(lines, fmt.Sprintf("Copied %d weeks, %d lessons, %d items, %d action items", cp.Weeks, cp.Lessons, cp.Items, cp.ActionItems))
	}
	if r.Error != "" {
		lines = append(lines, "Error: "+r.Error)
	}
	lines = append(lines, fmt.Sprintf("Took %s", r.Duration.Round(time.Millisecond)))
	return strings.Join(lines, "\n")
}

// RunImport shows progress for a running job until it ends and returns
// its result.
func RunImport(ctx context.Context, svc *core.Service, title, jobID string) (*core.JobResult, error) {
	updates, err := svc.SubscribeProgress(jobID)
	if err != nil {
		return nil, err
	}

	fetch := func() (*core.JobResult, error) {
		ctx, cancel := context.WithTimeout(ctx, ResultTimeout)
		defer cancel()
		return svc.GetJobResult(ctx, jobID)
	}
	cancel := func() { svc.CancelJob(jobID) }

	final, err := tea.NewProgram(NewImportModel(title, updates, fetch, cancel), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	return final.(ImportModel).Result()
}
