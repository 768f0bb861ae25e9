package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/glm-usage-tui/internal/client"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/ui/components"
	"github.com/j-veylop/glm-usage-tui/internal/ui/styles"
)

const (
	chartHeight  = 6
	loadingLabel = "Loading usage..."
)

// View renders the usage tab.
func (m *Model) View() string {
	cs := m.state.Client()

	var sections []string
	if banner := m.renderBanners(cs); banner != "" {
		sections = append(sections, banner)
	}

	switch {
	case cs.Snapshot == nil && cs.Error == "":
		sections = append(sections, m.renderLoading())
	case cs.Snapshot == nil:
		sections = append(sections, styles.HelpStyle.Render("No usage data available. Press r to retry."))
	case cs.Snapshot.Empty():
		sections = append(sections,
			styles.HelpStyle.Render("No usage data yet."),
			styles.HelpStyle.Render("The service has not reported any limits for this account."))
	default:
		sections = append(sections, m.renderLimits(*cs.Snapshot))
	}

	sections = append(sections, m.renderLastUpdated(cs), "", m.renderHistory())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(styles.DocStyle.Render(content))
	if m.height <= 0 {
		return content
	}
	return m.viewport.View()
}

func (m *Model) contentWidth() int {
	return max(m.width-8, 40)
}

func (m *Model) renderLoading() string {
	if m.height <= 0 {
		return m.loading.View()
	}
	return components.RenderActivityCentered(m.loading, m.contentWidth(), 3)
}

// renderBanners shows the error and degraded banners. Stale data stays
// visible below them.
func (m *Model) renderBanners(cs client.ClientState) string {
	width := m.contentWidth()
	var banners []string
	if cs.Error != "" {
		msg := ansi.Truncate("Error: "+cs.Error, width-4, "…")
		banners = append(banners, styles.BannerErrorStyle.Width(width).Render(msg))
	}
	if cs.Degraded {
		msg := "Live updates unavailable. Press r to refresh manually."
		banners = append(banners, styles.BannerWarningStyle.Width(width).Render(msg))
	}
	return strings.Join(banners, "\n")
}

func (m *Model) renderLimits(snap models.OkSnapshot) string {
	width := m.contentWidth()
	cards := make([]string, 0, snap.Len())
	for _, l := range snap.Limits() {
		rows := []string{m.bar.ViewLimit(l, width-6)}
		if l.Kind == models.LimitTokens && l.NextResetTime != nil {
			rows = append(rows, m.timeBar.View(*l.NextResetTime, m.now(), width-6))
		}
		if details := renderUsageDetails(l, width-6); details != "" {
			rows = append(rows, "", details)
		}
		cards = append(cards, styles.CardStyle.Width(width).Render(strings.Join(rows, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderUsageDetails(l models.Limit, width int) string {
	if len(l.UsageDetails) == 0 {
		return ""
	}

	codeWidth := min(max(width/2, 12), 32)
	lines := []string{styles.SubTitleStyle.Render("By model")}
	for _, d := range l.UsageDetails {
		code := ansi.Truncate(d.ModelCode, codeWidth, "…")
		lines = append(lines, fmt.Sprintf("  %s %s",
			styles.LabelStyle.Width(codeWidth+1).Render(code),
			styles.ValueStyle.Render(models.DisplayValue(l.Kind, d.Usage)+" "+models.UnitLabel(l.Kind))))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderLastUpdated(cs client.ClientState) string {
	if cs.LastSuccessfulUpdate.IsZero() {
		return styles.HelpStyle.Render("Last updated: never")
	}

	ts := cs.LastSuccessfulUpdate.Local()
	line := fmt.Sprintf("Last updated: %s (%s)", ts.Format(time.TimeOnly), formatAgo(m.now().Sub(ts)))
	if cs.Error != "" {
		line += " [stale]"
		return styles.WarningTextStyle.Render(line)
	}
	return styles.HelpStyle.Render(line)
}

func (m *Model) renderHistory() string {
	tr := m.state.TimeRange()
	header := styles.SubTitleStyle.Render(fmt.Sprintf("Token usage history (%s)", tr)) +
		"  " + styles.HelpStyle.Render("[h] change range")

	h := m.state.History()
	if h == nil || !h.HasData() {
		return lipgloss.JoinVertical(lipgloss.Left, header,
			styles.HelpStyle.Render("No history recorded yet. Samples are stored on every refresh."))
	}

	chart := components.RenderPercentChart(h.TokenPercentages, m.contentWidth()-8, chartHeight, "")
	summary := fmt.Sprintf("Peak %.0f%%  |  %d refreshes, %.0f%% successful  |  %s → %s",
		h.PeakPercentage, h.Refreshes, h.SuccessRate(),
		h.FirstDataPoint.Local().Format("Jan 2 15:04"),
		h.LastDataPoint.Local().Format("Jan 2 15:04"))

	return lipgloss.JoinVertical(lipgloss.Left, header, chart, styles.HelpStyle.Render(summary))
}

// formatAgo renders a short relative duration such as "42s ago".
func formatAgo(d time.Duration) string {
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
