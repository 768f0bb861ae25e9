// Package config provides the credentials form tab.
package config

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-usage-tui/internal/app"
	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/ui/components"
)

// formField represents which field is currently focused.
type formField int

const (
	fieldToken formField = iota
	fieldOrganization
	fieldProject
	fieldInterval
	fieldTest
	fieldSave
	fieldCount
)

// keyMap defines the key bindings specific to the config tab.
type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Enter    key.Binding
	Test     key.Binding
	Save     key.Binding
	Interval key.Binding
	Back     key.Binding
}

// defaultKeyMap returns the default key bindings for the config tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Test: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "test connection"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Interval: key.NewBinding(
			key.WithKeys("left", "right", " "),
			key.WithHelp("←/→", "change interval"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back to usage"),
		),
	}
}

// Model represents the config tab state.
type Model struct {
	state        *app.State
	commands     *app.Commands
	result       *client.ValidationResult
	inputs       []textinput.Model
	path         string
	keys         keyMap
	activity     components.Activity
	focusedField formField
	interval     int
	width        int
	height       int
	dirty        bool
}

// New creates a new config tab. path is shown as the location of the
// credentials file.
func New(state *app.State, commands *app.Commands, path string) *Model {
	token := textinput.New()
	token.Placeholder = "API token"
	token.CharLimit = 512
	token.Width = 48
	token.EchoMode = textinput.EchoPassword

	org := textinput.New()
	org.Placeholder = "org-..."
	org.CharLimit = 128
	org.Width = 48

	project := textinput.New()
	project.Placeholder = "proj_..."
	project.CharLimit = 128
	project.Width = 48

	m := &Model{
		state:    state,
		commands: commands,
		inputs:   []textinput.Model{token, org, project},
		path:     path,
		keys:     defaultKeyMap(),
		activity: components.NewActivity(),
		interval: models.DefaultRefreshInterval,
	}
	m.updateFormFocus()
	return m
}

// Init initializes the config tab.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Candidate returns the credentials currently entered in the form.
func (m *Model) Candidate() models.Credentials {
	return models.Credentials{
		Token:                  strings.TrimSpace(m.inputs[fieldToken].Value()),
		Organization:           strings.TrimSpace(m.inputs[fieldOrganization].Value()),
		Project:                strings.TrimSpace(m.inputs[fieldProject].Value()),
		RefreshIntervalSeconds: m.interval,
	}
}

// Update handles messages for the config tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case app.ClientStateMsg:
		m.syncFromState(msg.State)

	case app.ValidationResultMsg:
		m.activity.Stop()
		result := msg.Result
		m.result = &result
		if msg.Saved && result.OK {
			m.dirty = false
		}
	}

	var cmd tea.Cmd
	m.activity, cmd = m.activity.Update(msg)
	return m, cmd
}

// syncFromState loads persisted credentials into the form unless the
// user has unsaved edits.
func (m *Model) syncFromState(cs client.ClientState) {
	if m.dirty || cs.Credentials == nil {
		return
	}
	if c := cs.Credentials.WithDefaults(); m.Candidate() != c {
		m.setCredentials(c)
	}
}

func (m *Model) setCredentials(c models.Credentials) {
	m.inputs[fieldToken].SetValue(c.Token)
	m.inputs[fieldOrganization].SetValue(c.Organization)
	m.inputs[fieldProject].SetValue(c.Project)
	if models.IsAllowedRefreshInterval(c.RefreshIntervalSeconds) {
		m.interval = c.RefreshIntervalSeconds
	}
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.state.Client().Configured() {
			return m.commands.SetViewMode(client.ViewUsage)
		}
		return nil

	case key.Matches(msg, m.keys.Next):
		m.focusedField = (m.focusedField + 1) % fieldCount
		m.updateFormFocus()
		return textinput.Blink

	case key.Matches(msg, m.keys.Prev):
		m.focusedField = (m.focusedField - 1 + fieldCount) % fieldCount
		m.updateFormFocus()
		return textinput.Blink

	case key.Matches(msg, m.keys.Test):
		return m.test()

	case key.Matches(msg, m.keys.Save):
		return m.save()

	case key.Matches(msg, m.keys.Enter):
		switch m.focusedField {
		case fieldTest:
			return m.test()
		case fieldSave:
			return m.save()
		default:
			m.focusedField++
			m.updateFormFocus()
			return textinput.Blink
		}

	case m.focusedField == fieldInterval && key.Matches(msg, m.keys.Interval):
		if msg.String() == "left" {
			m.interval = previousRefreshInterval(m.interval)
		} else {
			m.interval = models.NextRefreshInterval(m.interval)
		}
		m.dirty = true
		return nil
	}

	if m.focusedField > fieldProject {
		return nil
	}

	before := m.inputs[m.focusedField].Value()
	var cmd tea.Cmd
	m.inputs[m.focusedField], cmd = m.inputs[m.focusedField].Update(msg)
	if m.inputs[m.focusedField].Value() != before {
		m.dirty = true
		m.result = nil
	}
	return cmd
}

// test and save run one validator call at a time; the result message
// stops the activity.
func (m *Model) test() tea.Cmd {
	if m.activity.Active() {
		return nil
	}
	m.result = nil
	return tea.Batch(m.commands.TestConnection(m.Candidate()), m.activity.Start("Testing connection..."))
}

func (m *Model) save() tea.Cmd {
	if m.activity.Active() {
		return nil
	}
	m.result = nil
	return tea.Batch(m.commands.Save(m.Candidate()), m.activity.Start("Saving..."))
}

// updateFormFocus updates which form field is focused.
func (m *Model) updateFormFocus() {
	for i := range m.inputs {
		if formField(i) == m.focusedField {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func previousRefreshInterval(secs int) int {
	all := models.AllowedRefreshIntervals
	i := slices.Index(all, secs)
	if i <= 0 {
		return all[len(all)-1]
	}
	return all[i-1]
}

// SetSize sets the available size for the config tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	w := min(max(width-30, 20), 64)
	for i := range m.inputs {
		m.inputs[i].Width = w
	}
}

// CapturesInput reports whether a text field has focus.
func (m *Model) CapturesInput() bool {
	return m.focusedField <= fieldProject
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	bindings := []key.Binding{m.keys.Next, m.keys.Test, m.keys.Save}
	if m.focusedField == fieldInterval {
		bindings = append(bindings, m.keys.Interval)
	}
	if m.state.Client().Configured() {
		bindings = append(bindings, m.keys.Back)
	}
	return bindings
}
