package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/framescope/internal/ui/styles"
)

// Gauge renders a labelled fill bar, used for cache occupancy and queue depth.
type Gauge struct {
	progress progress.Model
}

// NewGauge creates a gauge with gradient colors.
func NewGauge(width int) Gauge {
	p := progress.New(
		progress.WithScaledGradient(numericLowColor, numericHighColor),
		progress.WithWidth(max(width, 5)),
		progress.WithoutPercentage(),
	)
	return Gauge{progress: p}
}

// View renders the gauge at fraction (clamped to [0,1]) with a label and a
// "value/total" counter.
func (g Gauge) View(value, total int, label string, width int) string {
	frac := 0.0
	if total > 0 {
		frac = min(max(float64(value)/float64(total), 0), 1)
	}

	g.progress.Width = max(width-30, 10) // label and counter
	bar := g.progress.ViewAs(frac)

	labelStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(15).
		Render(label)

	countStr := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(12).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%d/%d", value, total))

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", countStr)
}
