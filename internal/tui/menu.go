package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

// MenuItem is one line of a menu. Selecting it opens Submenu or runs
// Action; an item labelled "Back" returns to the parent menu.
type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

// NewMenuTree links every submenu to its parent and points "Back" items
// at the parent.
func NewMenuTree(root *Menu) *Menu {
	linkParents(root, nil)
	return root
}

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

/* ----------------------------------------
	MENU MODEL
---------------------------------------- */

// MenuModel navigates a menu tree. While an action runs a spinner is shown
// and further selections are ignored.
type MenuModel struct {
	current *Menu
	cursor  int
	spinner spinner.Model
	busy    bool
	status  string
	failed  bool
}

func NewMenuModel(root *Menu) MenuModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return MenuModel{current: root, spinner: s}
}

func (m MenuModel) Init() tea.Cmd { return nil }

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case InfoMsg:
		m.status, m.failed = string(msg), false
		return m, nil

	case DoneMsg:
		m.busy = false
		m.status, m.failed = string(msg), false
		return m, nil

	case ErrMsg:
		m.busy = false
		m.status, m.failed = msg.Err.Error(), true
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MenuModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.current.Items)-1 {
			m.cursor++
		}
	case "esc", "backspace":
		if m.current.Parent != nil {
			m.current, m.cursor = m.current.Parent, 0
		}
	case "enter":
		if len(m.current.Items) == 0 {
			return m, nil
		}
		item := m.current.Items[m.cursor]
		switch {
		case item.Submenu != nil:
			m.current, m.cursor = item.Submenu, 0
			m.status = ""
		case item.Label == "Back":
			return m, tea.Quit
		case item.Action != nil:
			m.busy = true
			m.status = ""
			return m, tea.Batch(item.Action(), m.spinner.Tick)
		}
	}
	return m, nil
}

func (m MenuModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.current.Title))
	b.WriteString("\n")

	for i, item := range m.current.Items {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " working...")
	case m.failed:
		b.WriteString(errStyle.Render("Error: " + m.status))
	case m.status != "":
		b.WriteString(okStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("up/down: move  enter: select  esc: back  q: quit"))
	b.WriteString("\n")
	return b.String()
}

// Current returns the menu being shown.
func (m MenuModel) Current() *Menu { return m.current }
