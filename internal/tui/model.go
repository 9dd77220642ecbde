package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tomek7667/devconsole/internal/drill"
)

const rootLabel = "Disk Usage"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Descend key.Binding
	Ascend  key.Binding
	Reset   key.Binding
	Jump    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Descend, k.Ascend, k.Reset, k.Jump, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Descend, k.Ascend}, {k.Reset, k.Jump, k.Quit}}
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Descend: key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "open")),
	Ascend:  key.NewBinding(key.WithKeys("backspace", "left", "h"), key.WithHelp("backspace", "back")),
	Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "root")),
	Jump: key.NewBinding(
		key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("0-9", "jump to level"),
	),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the disk explorer. Navigation runs in commands; the model only
// keeps the frames and rows reported back by the last finished operation.
type Model struct {
	ctx context.Context
	nav *drill.Navigator

	Frames  []drill.Frame
	Rows    []drill.Row
	Cursor  int
	Loading bool
	Err     error

	WindowSize tea.WindowSizeMsg
	spinner    spinner.Model
	help       help.Model
}

func New(ctx context.Context, f drill.Fetcher) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle
	return Model{
		ctx:     ctx,
		nav:     drill.New(f),
		Loading: true,
		spinner: sp,
		help:    help.New(),
	}
}

// Run starts the explorer full screen and blocks until the user quits.
func Run(ctx context.Context, f drill.Fetcher) error {
	_, err := tea.NewProgram(New(ctx, f), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
