package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const columnWidth = 26

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(columnWidth)
	focusedColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("62"))
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))
	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
	selectedCardStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("62"))
	draggingCardStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func (m Model) View() string {
	if m.loading {
		return "loading applications...\n"
	}

	cols := m.columns()
	activeID := m.board.ActiveID()

	rendered := make([]string, 0, len(cols))
	for i, col := range cols {
		rendered = append(rendered, m.renderColumn(col, i == m.col, activeID))
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	var b strings.Builder
	b.WriteString(board)
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	if ann := m.board.Announcement(); ann != "" {
		b.WriteString(statusBarStyle.Render(ann) + "\n")
	}
	help := "move: h/j/k/l  pick up/drop: enter  cancel: esc  toggle group: t  reload: r  quit: q"
	if activeID != "" {
		help = "drop: enter on a column  cancel: esc"
	}
	b.WriteString(helpStyle.Render(help) + "\n")
	return b.String()
}

func (m Model) renderColumn(col column, focused bool, activeID string) string {
	var lines []string
	lines = append(lines, titleStyle.Render(col.title)+" "+countStyle.Render(fmt.Sprintf("(%d)", len(col.apps))))
	for i, app := range col.apps {
		label := app.Title
		if app.Company != "" {
			label = app.Title + " @ " + app.Company
		}
		switch {
		case app.ID == activeID:
			label = draggingCardStyle.Render("> " + label)
		case focused && i == m.row:
			label = selectedCardStyle.Render(label)
		default:
			label = cardStyle.Render(label)
		}
		lines = append(lines, label)
	}
	if len(col.apps) == 0 {
		lines = append(lines, countStyle.Render("empty"))
	}
	style := columnStyle
	if focused {
		style = focusedColumnStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}
