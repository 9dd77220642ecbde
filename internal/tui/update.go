package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tomek7667/devconsole/internal/drill"
)

// MsgNavigated reports a finished navigation. Frames and Rows describe the
// navigator afterwards, which on failure is its state before the attempt.
type MsgNavigated struct {
	Frames []drill.Frame
	Rows   []drill.Row
	Title  string
	Err    error
}

func (m Model) navigate(op func(*drill.Navigator) error) tea.Cmd {
	nav := m.nav
	return func() tea.Msg {
		err := op(nav)
		return MsgNavigated{
			Frames: nav.Frames(),
			Rows:   drill.SortedBySize(nav.Listing()),
			Title:  nav.Trail(rootLabel, " / "),
			Err:    err,
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.navigate(func(n *drill.Navigator) error {
		return n.Reset(m.ctx)
	}))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MsgNavigated:
		m.Loading = false
		m.Err = msg.Err
		if msg.Err == nil {
			m.Cursor = 0
		}
		m.Frames = msg.Frames
		m.Rows = msg.Rows
		m.clampCursor()
		return m, tea.SetWindowTitle(msg.Title)

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		switch {
		case key.Matches(msg, keys.Up):
			if m.Cursor > 0 {
				m.Cursor--
			}
			return m, nil
		case key.Matches(msg, keys.Down):
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
			}
			return m, nil
		}
		if m.Loading {
			return m, nil
		}
		return m.handleNavKey(msg)
	}
	return m, nil
}

func (m Model) handleNavKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var op func(*drill.Navigator) error
	switch {
	case key.Matches(msg, keys.Descend):
		if m.Cursor >= len(m.Rows) {
			return m, nil
		}
		row := m.Rows[m.Cursor]
		op = func(n *drill.Navigator) error { return n.Descend(m.ctx, row.Category, row.ID) }
	case key.Matches(msg, keys.Ascend):
		op = func(n *drill.Navigator) error { return n.Ascend(m.ctx) }
	case key.Matches(msg, keys.Reset):
		op = func(n *drill.Navigator) error { return n.Reset(m.ctx) }
	case key.Matches(msg, keys.Jump):
		// Level 0 is the root; level n is the n-th frame.
		level := int(msg.String()[0] - '0')
		if level > len(m.Frames) {
			return m, nil
		}
		op = func(n *drill.Navigator) error { return n.JumpTo(m.ctx, level-1) }
	default:
		return m, nil
	}
	m.Loading = true
	m.Err = nil
	return m, tea.Batch(m.spinner.Tick, m.navigate(op))
}

func (m *Model) clampCursor() {
	if m.Cursor >= len(m.Rows) {
		m.Cursor = len(m.Rows) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
}
