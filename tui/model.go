package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kaitranntt/jobhunt-sub002/domain"
	"github.com/kaitranntt/jobhunt-sub002/kanban"
)

// RefreshMsg requests a repaint after the board state changed outside the
// update loop, e.g. an asynchronous rollback.
type RefreshMsg struct{}

type appsLoadedMsg []domain.Application

type errMsg struct{ err error }

type applicationSource interface {
	FetchApplications(ctx context.Context) ([]domain.Application, error)
}

// Model is the bubbletea model for the kanban board screen.
type Model struct {
	board  *kanban.Board
	source applicationSource

	col     int
	row     int
	width   int
	height  int
	loading bool
	err     error
}

// NewModel creates the board screen backed by the given transition
// controller and application source.
func NewModel(board *kanban.Board, source applicationSource) Model {
	return Model{board: board, source: source, loading: true}
}

func (m Model) Init() tea.Cmd {
	return m.loadApplications()
}

func (m Model) loadApplications() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		apps, err := m.source.FetchApplications(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return appsLoadedMsg(apps)
	}
}

// column is one rendered board lane: a collapsed group or a single status.
type column struct {
	title  string
	target string
	group  domain.Group
	apps   []domain.Application
}

// columns projects the working copy into lanes, honoring per-group
// expansion.
func (m Model) columns() []column {
	recs := m.board.Records()
	byGroup := kanban.ByGroup(recs)
	byStatus := kanban.ByStatus(recs)
	var cols []column
	for _, g := range domain.Groups {
		if m.board.Expanded(g) {
			for _, st := range g.Statuses() {
				cols = append(cols, column{title: st.Label(), target: string(st), group: g, apps: byStatus[st]})
			}
		} else {
			cols = append(cols, column{title: g.Label(), target: string(g), group: g, apps: byGroup[g]})
		}
	}
	return cols
}

func (m Model) selectedApplication(cols []column) (domain.Application, bool) {
	if m.col >= len(cols) {
		return domain.Application{}, false
	}
	apps := cols[m.col].apps
	if m.row >= len(apps) {
		return domain.Application{}, false
	}
	return apps[m.row], true
}

func (m Model) clamp(cols []column) Model {
	if len(cols) == 0 {
		m.col, m.row = 0, 0
		return m
	}
	if m.col >= len(cols) {
		m.col = len(cols) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	if n := len(cols[m.col].apps); m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case appsLoadedMsg:
		m.loading = false
		m.err = nil
		m.board.Resync([]domain.Application(msg))
		return m.clamp(m.columns()), nil
	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	case RefreshMsg:
		return m.clamp(m.columns()), nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.loading = true
		return m, m.loadApplications()
	case "left", "h":
		m.col--
		return m.clamp(cols), nil
	case "right", "l":
		m.col++
		return m.clamp(cols), nil
	case "up", "k":
		m.row--
		return m.clamp(cols), nil
	case "down", "j":
		m.row++
		return m.clamp(cols), nil
	case "t":
		if m.col < len(cols) {
			m.board.ToggleGroup(cols[m.col].group)
			return m.clamp(m.columns()), nil
		}
		return m, nil
	case "esc":
		m.board.CancelDrag()
		return m, nil
	case "enter", " ":
		if m.board.ActiveID() == "" {
			if app, ok := m.selectedApplication(cols); ok {
				m.board.DragStart(app.ID)
			}
			return m, nil
		}
		if m.col >= len(cols) {
			return m, nil
		}
		target := cols[m.col].target
		board := m.board
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			board.DragEnd(ctx, target)
			return RefreshMsg{}
		}
	}
	return m, nil
}
