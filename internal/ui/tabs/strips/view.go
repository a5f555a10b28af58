package strips

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/models"
	"github.com/j-veylop/framescope/internal/tiles"
	"github.com/j-veylop/framescope/internal/timeline"
	"github.com/j-veylop/framescope/internal/ui/components"
	"github.com/j-veylop/framescope/internal/ui/styles"
	"github.com/j-veylop/framescope/internal/viewport"
)

// rulerStep is the distance in columns between ruler ticks.
const rulerStep = 12

// View renders the timeline tab.
func (m *Model) View() string {
	if m.engine == nil {
		return styles.CenterBoth(
			styles.HelpStyle.Render("No dataset loaded. Start with --demo N to create one."),
			m.width, m.height)
	}
	if m.width <= stripLeft {
		return ""
	}

	p, err := m.engine.Projection()
	if err != nil {
		return styles.ErrorTextStyle.Render(err.Error())
	}
	vs := m.engine.Viewport().State()
	opts := overlay(p, vs)

	var rows []string
	rows = append(rows, m.renderHeader(p, vs), "")
	rows = append(rows, m.indent(components.RenderRuler(m.stripWidth, rulerStep, func(col int) string {
		return m.timecode(p.PixelToFrame(float64(col)))
	})))

	readouts := make([]string, 0, m.engine.Registry().Len())
	for _, id := range m.engine.Registry().IDs() {
		row, readout := m.renderChannel(id, opts)
		rows = append(rows, row)
		readouts = append(readouts, readout)
	}

	if legend := m.renderLegend(); legend != "" {
		rows = append(rows, "", m.indent(legend))
	}
	rows = append(rows, "", m.renderFooter(vs, readouts))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// overlay computes the playhead and selection columns for the current view.
func overlay(p viewport.Projection, vs viewport.State) components.StripOptions {
	opts := components.NoOverlay
	if vs.Contains(vs.Playhead) {
		opts.Playhead = columnOf(p, float64(vs.Playhead))
	}
	if vs.HasSelection {
		first := columnOf(p, float64(vs.Selection.Start))
		last := int(math.Ceil(p.FrameToPixel(float64(vs.Selection.End+1)))) - 1
		first = max(first, 0)
		last = min(last, p.Pixels()-1)
		if first <= last {
			opts.SelStart, opts.SelEnd = first, last
		}
	}
	return opts
}

// columnOf returns the column drawing frame, accounting for the same
// rounding slack PixelToFrame applies.
func columnOf(p viewport.Projection, frame float64) int {
	return int(math.Floor(p.FrameToPixel(frame) + 1e-6))
}

func (m *Model) renderHeader(p viewport.Projection, vs viewport.State) string {
	f0, f1 := vs.VisibleFrames()

	level := "per-frame"
	if l := p.Level(); l != viewport.PerFrame {
		level = fmt.Sprintf("level %d (%d frames/bin)", l, m.engine.Layout().FramesPerBin(l))
	}

	title := styles.TitleStyle.UnsetMarginBottom().Render(m.datasetName())
	info := styles.HelpStyle.Render(fmt.Sprintf("  %s - %s of %d  |  %s  |  zoom %.1fx",
		m.timecode(f0), m.timecode(f1-1), vs.Duration, level, vs.ZoomFactor()))

	header := title + info
	st := m.engine.Stats()
	if busy := m.activity.View(st.Scheduler.Queued, st.Scheduler.Running); busy != "" {
		header += "  " + busy
	}
	return strings.Repeat(" ", leftMargin) + header
}

// renderChannel draws one strip and returns it with the channel's value at
// the playhead.
func (m *Model) renderChannel(id string, opts components.StripOptions) (string, string) {
	label := styles.StripLabelStyle.Width(labelWidth).Render(ansi.Truncate(id, labelWidth, "…"))
	prefix := strings.Repeat(" ", leftMargin) + label + strings.Repeat(" ", gutter)

	cols, err := m.engine.Columns(id)
	if err != nil {
		return prefix + styles.ErrorTextStyle.Render(ansi.Truncate(err.Error(), m.stripWidth, "…")), id + "=?"
	}

	cells := make([]components.Cell, len(cols))
	values := make([]float64, len(cols))
	for i, c := range cols {
		cells[i] = cellOf(c)
		values[i] = c.Value
	}

	var strip string
	ch, _ := m.engine.Registry().Lookup(id)
	if ch.Cardinality == channel.Categorical {
		strip = components.RenderCategoricalStrip(cells, opts)
	} else {
		lo, hi, _ := components.Bounds(values)
		strip = components.RenderNumericStrip(cells, lo, hi, opts)
	}

	readout := id + "=-"
	if opts.Playhead >= 0 && opts.Playhead < len(cols) {
		readout = id + "=" + m.formatValue(id, ch.Cardinality, cols[opts.Playhead].Value)
	}
	return prefix + strip, readout
}

func cellOf(c timeline.Column) components.Cell {
	return components.Cell{
		Value:       c.Value,
		Approximate: c.Approximate,
		Stale:       c.Status == tiles.StatusStale,
		Failed:      c.Status == tiles.StatusError,
	}
}

func (m *Model) formatValue(id string, card channel.Cardinality, v float64) string {
	if card == channel.Categorical {
		if spec, ok := m.state.GetChannel(id); ok {
			return spec.LabelName(v)
		}
	}
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3g", v)
}

// renderLegend lists the label colors of every categorical channel.
func (m *Model) renderLegend() string {
	var lines []string
	for _, spec := range m.state.GetChannels() {
		if len(spec.Labels) == 0 {
			continue
		}
		items := make([]components.LegendItem, 0, len(spec.Labels))
		for v := range len(spec.Labels) + 1 {
			name, ok := spec.Labels[v]
			if !ok {
				continue
			}
			items = append(items, components.LegendItem{Label: name, Color: styles.CategoryColor(v)})
		}
		lines = append(lines, styles.HelpStyle.Render(spec.ID+": ")+components.RenderLegend(items))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter(vs viewport.State, readouts []string) string {
	parts := []string{fmt.Sprintf("▶ %s", m.timecode(vs.Playhead))}
	parts = append(parts, readouts...)
	if vs.HasSelection {
		parts = append(parts, fmt.Sprintf("sel %s - %s (%d frames)",
			m.timecode(vs.Selection.Start), m.timecode(vs.Selection.End), vs.Selection.Len()))
	}
	if count, _ := m.state.GetEdits(); count > 0 {
		parts = append(parts, fmt.Sprintf("%d external edits", count))
	}
	if m.status != "" {
		parts = append(parts, styles.WarningTextStyle.Render(m.status))
	}

	line := ansi.Truncate(strings.Join(parts, "  |  "), max(m.width-2, 1), "…")
	return styles.StatusBarStyle.Width(m.width).Render(line)
}

func (m *Model) indent(block string) string {
	pad := strings.Repeat(" ", stripLeft)
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}

func (m *Model) timecode(frame int) string {
	if ds := m.state.GetDataset(); ds != nil {
		return ds.Timecode(frame)
	}
	return (&models.Dataset{}).Timecode(frame)
}

func (m *Model) datasetName() string {
	if ds := m.state.GetDataset(); ds != nil && ds.Name != "" {
		return ds.Name
	}
	return "Timeline"
}
