// Package app implements the main Bubble Tea application that renders the
// reconciled client state.
package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/ui/styles"
)

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// CapturesInput reports whether the tab is consuming typed text, in
	// which case single-letter global keys are not applied.
	CapturesInput() bool
}

// KeyMap defines the global keybindings.
type KeyMap struct {
	Quit       key.Binding
	ForceQuit  key.Binding
	Refresh    key.Binding
	ToggleView key.Binding
	Help       key.Binding
	Escape     key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Refresh:    key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		ToggleView: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "usage/config")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Escape:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// ShortHelp returns key bindings for the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.ToggleView, k.Help, k.Quit}
}

// Styles defines the application styles.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style

	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content lipgloss.Style
	Help    lipgloss.Style
	Toast   lipgloss.Style

	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}

	s := Styles{}
	s.TabBar = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).BorderForeground(subtle)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2)
	s.InactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)

	s.NotificationSuccess = lipgloss.NewStyle().Foreground(success).Padding(0, 1)
	s.NotificationError = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1)
	s.NotificationWarning = lipgloss.NewStyle().Foreground(warning).Padding(0, 1)
	s.NotificationInfo = lipgloss.NewStyle().Foreground(highlight).Padding(0, 1)

	s.Content = lipgloss.NewStyle().Padding(1, 2)
	s.Help = lipgloss.NewStyle().Foreground(subtle).Padding(0, 1)
	s.Toast = styles.ToastStyle

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)

	return s
}

// Model is the main application model.
type Model struct {
	tabs     map[client.ViewMode]Tab
	state    *State
	commands *Commands
	keymap   KeyMap
	styles   Styles
	spinner  spinner.Model
	title    string
	width    int
	height   int
	showHelp bool
	ready    bool
}

// NewModel initializes a new application model.
func NewModel(state *State, commands *Commands) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	if state == nil {
		state = NewState()
	}
	if commands == nil {
		commands = NewCommands(nil, nil, nil)
	}

	return &Model{
		tabs:     make(map[client.ViewMode]Tab),
		state:    state,
		commands: commands,
		keymap:   DefaultKeyMap(),
		styles:   DefaultStyles(),
		spinner:  s,
	}
}

// SetTab installs the tab rendered for a view mode.
func (m *Model) SetTab(mode client.ViewMode, tab Tab) {
	m.tabs[mode] = tab
	if m.width > 0 && m.height > 0 {
		tab.SetSize(m.width, m.contentHeight())
	}
}

// State returns the shared view state.
func (m *Model) State() *State {
	return m.state
}

// ActiveView returns the view mode currently shown.
func (m *Model) ActiveView() client.ViewMode {
	return m.state.Client().ViewMode
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.commands.Tick(),
		m.commands.WaitForChange(),
		m.commands.StartSession(),
		m.commands.LoadHistory(m.state.TimeRange()),
	}
	for _, tab := range m.tabs {
		cmds = append(cmds, tab.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()

	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if handled {
			return m, cmd
		}
		// Keys only go to the visible tab.
		if tab := m.activeTab(); tab != nil {
			var tabCmd tea.Cmd
			m.tabs[m.ActiveView()], tabCmd = tab.Update(msg)
			cmds = append(cmds, tabCmd)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	cmds = append(cmds, m.updateTabs(msg)...)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, m.commands.Tick())
	case ClientStateMsg:
		cmds = append(cmds, m.handleClientState(msg.State)...)
	case SessionStartedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.commands.NotifyError(fmt.Sprintf("Session start failed: %v", msg.Err)))
		}
	case RefreshResultMsg:
		cmds = append(cmds, m.handleRefreshResult(msg)...)
	case HistoryLoadedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.commands.NotifyWarning(fmt.Sprintf("History unavailable: %v", msg.Err)))
		} else {
			m.state.SetHistory(msg.Stats)
		}
	case ValidationResultMsg:
		if msg.Saved && msg.Result.OK {
			cmds = append(cmds, m.commands.NotifySuccess(msg.Result.Summary))
		}
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleClientState(next client.ClientState) []tea.Cmd {
	prev := m.state.Client()
	m.state.SetClient(next)

	cmds := []tea.Cmd{m.commands.WaitForChange()}

	if prev.ViewMode != next.ViewMode {
		m.updateTabSizes()
	}
	if !next.LastSuccessfulUpdate.Equal(prev.LastSuccessfulUpdate) {
		cmds = append(cmds, m.commands.LoadHistory(m.state.TimeRange()))
	}
	if next.Degraded && !prev.Degraded {
		cmds = append(cmds, m.commands.NotifyWarning("Live updates unavailable, press r to refresh"))
	}
	if title := models.TrayTitle(next.Snapshot); title != m.title {
		m.title = title
		cmds = append(cmds, tea.SetWindowTitle(title))
	}
	return cmds
}

func (m *Model) handleRefreshResult(msg RefreshResultMsg) []tea.Cmd {
	m.state.SetRefreshing(false)
	m.state.ClearLoadingNotification()

	if msg.Err != nil {
		var ve *models.ValidationError
		if errors.As(msg.Err, &ve) || errors.Is(msg.Err, models.ErrNotConfigured) {
			return []tea.Cmd{m.commands.NotifyWarning("Configure your API credentials first")}
		}
		return []tea.Cmd{m.commands.NotifyError(fmt.Sprintf("Refresh failed: %v", msg.Err))}
	}
	return []tea.Cmd{m.commands.NotifySuccess("Usage refreshed")}
}

// handleKeyMsg applies global keybindings. It reports whether the key was consumed.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return tea.Quit, true
	}

	if m.showHelp {
		if key.Matches(msg, m.keymap.Escape, m.keymap.Help, m.keymap.Quit) {
			m.showHelp = false
		}
		return nil, true
	}

	if tab := m.activeTab(); tab != nil && tab.CapturesInput() {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
		return nil, true

	case key.Matches(msg, m.keymap.ToggleView):
		return m.commands.ToggleView(), true

	case key.Matches(msg, m.keymap.Refresh):
		if m.state.Refreshing() {
			return nil, true
		}
		m.state.SetRefreshing(true)
		m.state.SetLoadingNotification("Refreshing...")
		return m.commands.Refresh(), true
	}

	return nil, false
}

func (m *Model) activeTab() Tab {
	return m.tabs[m.ActiveView()]
}

// updateTabs forwards non-key messages to every tab so results reach a
// tab even after the view switched away from it.
func (m *Model) updateTabs(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	for mode, tab := range m.tabs {
		updated, cmd := tab.Update(msg)
		m.tabs[mode] = updated
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (m *Model) contentHeight() int {
	return max(0, m.height-4)
}

func (m *Model) updateTabSizes() {
	for _, tab := range m.tabs {
		tab.SetSize(m.width, m.contentHeight())
	}
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(m.spinner.View() + " Loading..."))
		return b.String()
	}

	if tab := m.activeTab(); tab != nil {
		b.WriteString(tab.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

func (m *Model) renderNavbar() string {
	active := m.ActiveView()
	var tabs []string
	for _, mode := range []client.ViewMode{client.ViewUsage, client.ViewConfig} {
		name := viewName(mode)
		if mode == active {
			tabs = append(tabs, m.styles.ActiveTab.Render("["+name+"]"))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(" "+name+" "))
		}
	}

	title := m.styles.Title.Render(models.TrayTitle(m.state.Client().Snapshot))
	bar := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{title, "  "}, tabs...)...)
	return m.styles.TabBar.Width(m.width).Render(bar)
}

func (m *Model) renderFooter() string {
	bindings := m.keymap.ShortHelp()
	if tab := m.activeTab(); tab != nil {
		if tab.CapturesInput() {
			bindings = []key.Binding{m.keymap.ForceQuit}
		}
		bindings = append(tab.ShortHelp(), bindings...)
	}

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	line := strings.Join(parts, "  ")
	if m.width > 0 {
		line = ansi.Truncate(line, m.width, "…")
	}
	return m.styles.Help.Render(line)
}

func viewName(mode client.ViewMode) string {
	if mode == client.ViewUsage {
		return "Usage"
	}
	return "Config"
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	y := max((m.height-len(overlayLines))/2, 0)
	x := max((m.width-lipgloss.Width(overlay))/2, 0)
	overlayWidth := lipgloss.Width(overlay)

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]
		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style = m.styles.NotificationSuccess
			prefix = "[OK]"
		case NotificationError:
			style = m.styles.NotificationError
			prefix = "[ERR]"
		case NotificationWarning:
			style = m.styles.NotificationWarning
			prefix = "[WARN]"
		case NotificationInfo:
			style = m.styles.NotificationInfo
			prefix = "[INFO]"
		case NotificationLoading:
			style = m.styles.NotificationInfo
			prefix = m.spinner.View()
		}

		message := n.Message
		if m.width > 0 {
			message = ansi.Truncate(message, max(m.width/2, 20), "…")
		}
		toasts = append(toasts, m.styles.Toast.Render(style.Render(prefix+" "+message)))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	startY := 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		m.styles.Highlight.Render("Global"),
		"  r          Refresh usage now",
		"  c          Switch usage/config view",
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
		"",
	}

	if tab := m.activeTab(); tab != nil {
		if tabHelp := tab.ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(viewName(m.ActiveView())))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))
	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}
