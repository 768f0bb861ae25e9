package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/glm-usage-tui/internal/ui/styles"
)

var fieldLabels = [...]string{
	fieldToken:        "Token",
	fieldOrganization: "Organization",
	fieldProject:      "Project",
	fieldInterval:     "Refresh every",
}

// View renders the config tab.
func (m *Model) View() string {
	sections := []string{
		styles.TitleStyle.Render("API Configuration"),
	}

	if !m.state.Client().Configured() {
		sections = append(sections,
			styles.WarningTextStyle.Render("Enter your token, organization and project to start monitoring."), "")
	}

	for i := range m.inputs {
		sections = append(sections, m.renderRow(formField(i), m.inputs[i].View()))
	}
	sections = append(sections,
		m.renderRow(fieldInterval, m.renderInterval()),
		"",
		m.renderButtons(),
		"",
		m.renderStatus(),
	)

	if m.path != "" {
		path := ansi.Truncate("Stored in "+m.path, max(m.width-6, 20), "…")
		sections = append(sections, "", styles.HelpStyle.Render(path))
	}

	return styles.DocStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderRow(field formField, value string) string {
	label := fieldLabels[field]
	labelStyle := styles.BlurredStyle
	marker := "  "
	if field == m.focusedField {
		labelStyle = styles.FocusedStyle
		marker = styles.FocusedStyle.Render("> ")
	}
	return marker + labelStyle.Width(16).Render(label) + value
}

func (m *Model) renderInterval() string {
	value := fmt.Sprintf("%ds", m.interval)
	if m.focusedField == fieldInterval {
		return styles.FocusedStyle.Render("< " + value + " >")
	}
	return styles.ValueStyle.Render("  " + value)
}

func (m *Model) renderButtons() string {
	test := styles.ButtonInactiveStyle.Render("Test connection")
	save := styles.ButtonInactiveStyle.Render("Save")
	switch m.focusedField {
	case fieldTest:
		test = styles.ButtonActiveStyle.Render("Test connection")
	case fieldSave:
		save = styles.ButtonActiveStyle.Render("Save")
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, test, save)
}

func (m *Model) renderStatus() string {
	if m.activity.Active() {
		return m.activity.View()
	}
	if m.result == nil {
		return ""
	}

	msg := m.result.String()
	if m.width > 0 {
		msg = ansi.Truncate(msg, max(m.width-8, 20), "…")
	}
	switch {
	case m.result.OK && m.result.Degraded:
		return styles.WarningTextStyle.Render("! " + msg)
	case m.result.OK:
		return styles.SuccessTextStyle.Render("✓ " + msg)
	default:
		return styles.ErrorTextStyle.Render("✗ " + strings.TrimSpace(msg))
	}
}
