package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/ui/styles"
)

// Numeric strips are colored along this gradient from low to high values.
const (
	numericLowColor  = "#5f5fd7"
	numericHighColor = "#51cf66"
)

// Cell is one column of a channel strip.
type Cell struct {
	Value float64
	// Approximate cells come from a coarser level or the placeholder.
	Approximate bool
	// Stale cells show data from before an edit.
	Stale  bool
	Failed bool
}

// StripOptions controls the overlays drawn on top of a strip. Columns are
// zero-based; negative values disable an overlay.
type StripOptions struct {
	Playhead int
	SelStart int
	SelEnd   int
}

// NoOverlay draws a strip without playhead or selection.
var NoOverlay = StripOptions{Playhead: -1, SelStart: -1, SelEnd: -1}

// RenderCategoricalStrip draws one full block per column colored by label.
func RenderCategoricalStrip(cells []Cell, opts StripOptions) string {
	return renderStrip(cells, opts, func(c Cell) (string, lipgloss.Style) {
		return "█", lipgloss.NewStyle().Foreground(styles.CategoryColor(int(c.Value)))
	})
}

// RenderNumericStrip draws a level glyph per column scaled to [lo, hi].
func RenderNumericStrip(cells []Cell, lo, hi float64, opts StripOptions) string {
	return renderStrip(cells, opts, func(c Cell) (string, lipgloss.Style) {
		idx := Level(c.Value, lo, hi, len(sparkChars))
		t := float64(idx) / float64(len(sparkChars)-1)
		color := interpolateColor(numericLowColor, numericHighColor, t)
		return string(sparkChars[idx]), lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	})
}

func renderStrip(cells []Cell, opts StripOptions, glyph func(Cell) (string, lipgloss.Style)) string {
	var b strings.Builder
	for i, c := range cells {
		var ch string
		var style lipgloss.Style

		switch {
		case c.Failed:
			ch, style = "!", styles.ErrorCellStyle
		case math.IsNaN(c.Value):
			ch, style = "·", styles.PendingCellStyle
		default:
			ch, style = glyph(c)
			if c.Approximate || c.Stale {
				style = style.Faint(true)
			}
		}

		switch {
		case i == opts.Playhead:
			ch, style = "┃", styles.PlayheadStyle
		case opts.SelStart >= 0 && i >= opts.SelStart && i <= opts.SelEnd:
			style = style.Background(styles.SelectionStyle.GetBackground())
		}

		b.WriteString(style.Render(ch))
	}
	return b.String()
}

// RenderRuler draws tick marks every step columns labelled by label(col).
// Labels that would overlap the previous one are skipped.
func RenderRuler(width, step int, label func(col int) string) string {
	if width < 1 {
		return ""
	}
	step = max(step, 1)

	line := []rune(strings.Repeat("─", width))
	text := []rune(strings.Repeat(" ", width))
	next := 0
	for col := 0; col < width; col += step {
		line[col] = '┬'
		l := []rune(label(col))
		if col < next || col+len(l) > width {
			continue
		}
		copy(text[col:], l)
		next = col + len(l) + 1
	}

	return styles.RulerStyle.Render(string(text) + "\n" + string(line))
}

// RenderGradientBar renders a bar filled to percent with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*percent/100), 0), width)

	var barChars []string
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(numericLowColor, numericHighColor, t)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			barChars = append(barChars, style.Render("█"))
		} else {
			style := lipgloss.NewStyle().Foreground(styles.Subtle)
			barChars = append(barChars, style.Render("░"))
		}
	}

	return strings.Join(barChars, "")
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
