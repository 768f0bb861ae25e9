// Package usage provides the tab that shows the current quota limits.
package usage

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-usage-tui/internal/app"
	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/ui/components"
)

// keyMap defines the key bindings specific to the usage tab.
type keyMap struct {
	CycleRange key.Binding
	Up         key.Binding
	Down       key.Binding
}

// defaultKeyMap returns the default key bindings for the usage tab.
func defaultKeyMap() keyMap {
	return keyMap{
		CycleRange: key.NewBinding(
			key.WithKeys("h", "t"),
			key.WithHelp("h", "history range"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// Model represents the usage tab state.
type Model struct {
	state    *app.State
	commands *app.Commands
	now      func() time.Time
	keys     keyMap
	loading  components.Activity
	bar      components.LimitBar
	timeBar  components.TimeBar
	viewport viewport.Model
	width    int
	height   int
}

// New creates a new usage tab.
func New(state *app.State, commands *app.Commands) *Model {
	m := &Model{
		state:    state,
		commands: commands,
		now:      time.Now,
		keys:     defaultKeyMap(),
		loading:  components.NewActivity(),
		bar:      components.NewLimitBar(),
		timeBar:  components.NewTimeBar(),
		viewport: viewport.New(0, 0),
	}
	m.loading.Start(loadingLabel)
	return m
}

// Init initializes the tab.
func (m *Model) Init() tea.Cmd {
	return m.loading.Tick()
}

// Update handles messages and updates the tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.CycleRange) {
			return m, m.commands.LoadHistory(m.state.CycleTimeRange())
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case app.ClientStateMsg:
		return m, m.trackLoading(msg.State)
	default:
		var cmd tea.Cmd
		m.loading, cmd = m.loading.Update(msg)
		return m, cmd
	}
}

// trackLoading runs the loading activity while no usage or error has
// arrived for the current session.
func (m *Model) trackLoading(cs client.ClientState) tea.Cmd {
	if cs.Phase() != client.PhaseUninitialized {
		m.loading.Stop()
		return nil
	}
	if !m.loading.Active() {
		return m.loading.Start(loadingLabel)
	}
	return nil
}

// SetSize sets the available size for the tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// CapturesInput implements app.Tab.
func (m *Model) CapturesInput() bool {
	return false
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.CycleRange, m.keys.Up, m.keys.Down}
}
