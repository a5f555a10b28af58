// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/framescope/internal/ui/styles"
)

// sparkChars are the eighth-block characters used for numeric levels.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart creates a single-series ASCII line chart. Missing values
// (NaN) are carried forward so gaps do not break the line.
func RenderLineChart(data []float64, width, height int, caption string) string {
	data = fillGaps(data)
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// fillGaps drops leading NaNs and replaces later ones with the previous value.
func fillGaps(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		switch {
		case !math.IsNaN(v):
			out = append(out, v)
		case len(out) > 0:
			out = append(out, out[len(out)-1])
		}
	}
	return out
}

// Bounds returns the smallest and largest non-NaN values. ok is false when
// every value is missing.
func Bounds(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// Level maps v in [lo, hi] to an index in [0, n). Flat ranges map to the top.
func Level(v, lo, hi float64, n int) int {
	if hi <= lo {
		return n - 1
	}
	idx := int((v - lo) / (hi - lo) * float64(n-1))
	return min(max(idx, 0), n-1)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, len(l))
	}

	barWidth := max(width-maxLabelLen-10, 10) // room for label and value

	var lines []string
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}

		barLen := max(int((v/maxVal)*float64(barWidth)), 0)
		line := fmt.Sprintf("%*s │%s %.0f", maxLabelLen, label, strings.Repeat("█", barLen), v)
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// RenderSparkline creates a compact inline sparkline chart. Missing values
// are drawn as spaces.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return ""
	}

	lo, hi, ok := Bounds(values)
	if !ok {
		return strings.Repeat(" ", min(width, len(values)))
	}

	var result strings.Builder
	step := max(float64(len(values))/float64(width), 1)

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		v := values[int(float64(i)*step)]
		if math.IsNaN(v) {
			result.WriteRune(' ')
			continue
		}
		result.WriteRune(sparkChars[Level(v, lo, hi, len(sparkChars))])
	}

	return result.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	var parts []string
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}
