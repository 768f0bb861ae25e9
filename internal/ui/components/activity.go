package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-usage-tui/internal/ui/styles"
)

// Activity shows a spinner next to a label while a slow operation, such as
// a connection test or the first usage fetch, is in flight. The spinner only
// ticks while the activity is running.
type Activity struct {
	started time.Time
	now     func() time.Time
	spinner spinner.Model
	label   string
	style   lipgloss.Style
}

// NewActivity creates an idle activity.
func NewActivity() Activity {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return Activity{
		now:     time.Now,
		spinner: s,
		style:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// Start marks the activity as running under label and returns the first tick.
func (a *Activity) Start(label string) tea.Cmd {
	a.label = label
	a.started = a.now()
	return a.Tick()
}

// Stop ends the activity; pending ticks are dropped.
func (a *Activity) Stop() {
	a.label = ""
	a.started = time.Time{}
}

// Active reports whether the activity is running.
func (a Activity) Active() bool {
	return a.label != ""
}

// Label returns the running label, or "" when idle.
func (a Activity) Label() string {
	return a.label
}

// Tick returns the spinner tick command, or nil when idle.
func (a Activity) Tick() tea.Cmd {
	if !a.Active() {
		return nil
	}
	return a.spinner.Tick
}

// Update advances the spinner while running.
func (a Activity) Update(msg tea.Msg) (Activity, tea.Cmd) {
	if !a.Active() {
		return a, nil
	}
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return a, cmd
}

// View renders the spinner, the label and, after the first second, the
// elapsed time. It is empty when idle.
func (a Activity) View() string {
	if !a.Active() {
		return ""
	}
	text := a.label
	if d := a.now().Sub(a.started); d >= time.Second {
		text += fmt.Sprintf(" (%ds)", int(d.Seconds()))
	}
	return a.spinner.View() + " " + a.style.Render(text)
}

// RenderActivityCentered renders an activity centered in the given box.
func RenderActivityCentered(a Activity, width, height int) string {
	return styles.CenterBoth(a.View(), width, height)
}
