package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	crumbStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const barWidth = 20

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("devconsole disk"))
	b.WriteString("\n\n")
	b.WriteString(m.breadcrumb())
	if m.Loading {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if m.Err != nil {
		b.WriteString(errStyle.Render("Error: "+m.Err.Error()) + "\n\n")
	}

	if len(m.Rows) == 0 && !m.Loading {
		b.WriteString(dimStyle.Render("  (empty)") + "\n")
	}
	start, end := m.window()
	var largest int64
	for _, r := range m.Rows {
		if r.SizeBytes > largest {
			largest = r.SizeBytes
		}
	}
	for i := start; i < end; i++ {
		r := m.Rows[i]
		line := fmt.Sprintf("%-32s %10s %8d  %s",
			truncate(r.Category, 32), HumanBytes(r.SizeBytes), r.ItemCount, barStyle.Render(bar(r.SizeBytes, largest)))
		if i == m.Cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(normalStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) breadcrumb() string {
	parts := make([]string, 0, len(m.Frames)+1)
	parts = append(parts, fmt.Sprintf("[0] %s", rootLabel))
	for i, f := range m.Frames {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, f.Label))
	}
	return crumbStyle.Render(strings.Join(parts, " > "))
}

// window returns the visible slice of rows, keeping the cursor centred.
func (m Model) window() (int, int) {
	visible := m.WindowSize.Height - 8
	if visible < 5 {
		visible = 5
	}
	if len(m.Rows) <= visible {
		return 0, len(m.Rows)
	}
	start := m.Cursor - visible/2
	if start < 0 {
		start = 0
	}
	if start+visible > len(m.Rows) {
		start = len(m.Rows) - visible
	}
	return start, start + visible
}

func bar(size, largest int64) string {
	if largest <= 0 {
		return ""
	}
	n := int(size * barWidth / largest)
	if n == 0 && size > 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// HumanBytes formats n with binary units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
