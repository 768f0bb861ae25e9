// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
	"github.com/j-veylop/glm-usage-tui/internal/ui/styles"
)

// tokenWindow is the rolling window of the TOKENS limit.
const tokenWindow = 5 * time.Hour

// LimitBar renders a usage progress bar coloured by severity.
type LimitBar struct {
	progress progress.Model
}

// NewLimitBar creates a new limit bar.
func NewLimitBar() LimitBar {
	return NewLimitBarWithWidth(30)
}

// NewLimitBarWithWidth creates a limit bar with a specific width.
func NewLimitBarWithWidth(width int) LimitBar {
	p := progress.New(
		progress.WithSolidFill(string(styles.Success)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return LimitBar{progress: p}
}

// SetWidth sets the progress bar width.
func (b *LimitBar) SetWidth(width int) {
	b.progress.Width = width
}

// View renders the bar for a usage percentage followed by the percentage.
func (b LimitBar) View(percent float64, width int) string {
	barWidth := max(width-8, 10)
	b.progress.Width = barWidth
	b.progress.FullColor = string(styles.SeverityColor(models.SeverityFor(percent)))

	bar := b.progress.ViewAs(percent / 100)
	percentStr := styles.GetSeverityStyle(percent).
		Width(6).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	return lipgloss.JoinHorizontal(lipgloss.Center, bar, " ", percentStr)
}

// ViewLimit renders a titled bar for a limit with its usage line beneath.
func (b LimitBar) ViewLimit(l models.Limit, width int) string {
	title := styles.CardTitleStyle.Render(models.Title(l.Kind))
	sev := models.SeverityFor(l.Percentage)
	if sev != models.SeverityNormal {
		title += " " + styles.GetSeverityStyle(l.Percentage).Render(strings.ToUpper(sev.String()))
	}

	unit := models.UnitLabel(l.Kind)
	usage := fmt.Sprintf("%s / %s %s used, %s remaining",
		models.DisplayValue(l.Kind, l.CurrentValue),
		models.DisplayValue(l.Kind, l.UsageTotal),
		unit,
		models.DisplayValue(l.Kind, l.Remaining))

	lines := []string{
		title,
		b.View(l.Percentage, width),
		styles.ProgressLabelStyle.Render(strings.TrimSpace(usage)),
		styles.HelpStyle.Render(models.ResetDescription(l)),
	}
	return strings.Join(lines, "\n")
}

// TimeBar renders how much of the rolling token window has elapsed.
type TimeBar struct{}

// NewTimeBar creates a new time bar.
func NewTimeBar() TimeBar {
	return TimeBar{}
}

// View renders the bar for a reset time relative to now. The bar fills
// up as the reset approaches.
func (t TimeBar) View(reset, now time.Time, width int) string {
	remaining := max(reset.Sub(now), 0)
	percent := 1 - float64(remaining)/float64(tokenWindow)
	percent = min(max(percent, 0), 1)

	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	timeStr := fmt.Sprintf("%dh %02dm", hours, minutes)

	barWidth := max(width-12, 10)
	bar := RenderTimeBarChars(percent, barWidth)

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(8).
		Align(lipgloss.Right)

	return fmt.Sprintf("[%s] %s", bar, timeStyle.Render(timeStr))
}

// RenderTimeBarChars renders just the bar characters for a time bar.
func RenderTimeBarChars(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*percent), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ffd93d", "#6c5ce7", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// SimpleLimitBar renders a plain ASCII bar without styling, for line output.
func SimpleLimitBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := min(max(int(float64(width)*percent/100), 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
