package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/promptpetrol/internal/core"
	"github.com/janekbaraniewski/promptpetrol/internal/engine"
)

type tickMsg time.Time

// Freshness is time based, so the view redraws once a second even when no
// snapshot arrives.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// SnapshotMsg delivers a published engine snapshot to the program.
type SnapshotMsg struct {
	Snapshot *engine.Snapshot
}

type Model struct {
	snap      *engine.Snapshot
	providers []string
	selected  string
	showHelp  bool
	width     int
	height    int

	refreshing bool // true between a manual reload and the next snapshot
	now        func() time.Time
	onRefresh  func()
}

func NewModel() Model {
	return Model{now: time.Now}
}

// SetOnRefresh sets the callback for the reload key.
func (m *Model) SetOnRefresh(fn func()) {
	m.onRefresh = fn
}

func (m Model) Init() tea.Cmd { return tickCmd() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		if msg.Snapshot == nil {
			return m, nil
		}
		m.snap = msg.Snapshot
		m.refreshing = false
		m.providers = core.ProviderNames(m.snap.Data)
		m.syncSelected()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m.requestRefresh(), nil
	case "left", "h", "k", "up":
		m.selectProvider(-1)
	case "right", "l", "j", "down":
		m.selectProvider(1)
	case "?":
		m.showHelp = true
	}
	return m, nil
}

func (m Model) requestRefresh() Model {
	if m.onRefresh == nil {
		return m
	}
	m.refreshing = true
	m.onRefresh()
	return m
}

// syncSelected keeps the current provider when it still exists and falls
// back to the first one otherwise.
func (m *Model) syncSelected() {
	if len(m.providers) == 0 {
		m.selected = ""
		return
	}
	if !lo.Contains(m.providers, m.selected) {
		m.selected = m.providers[0]
	}
}

func (m *Model) selectProvider(step int) {
	if len(m.providers) == 0 {
		return
	}
	idx := lo.IndexOf(m.providers, m.selected)
	if idx < 0 {
		m.selected = m.providers[0]
		return
	}
	n := len(m.providers)
	m.selected = m.providers[((idx+step)%n+n)%n]
}

// Selected is the provider the detail panel shows.
func (m Model) Selected() string {
	return m.selected
}
