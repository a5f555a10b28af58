package info

import (
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/framescope/internal/ui/components"
	"github.com/j-veylop/framescope/internal/ui/styles"
	"github.com/j-veylop/framescope/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderDatasetCard(),
		m.renderEngineCard(),
		m.renderAboutCard(),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, dataset and aggregation status")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 80)
}

func (m *Model) card(title string, rows ...string) string {
	body := append([]string{styles.CardTitleStyle.Render(title)}, rows...)
	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, body...),
	)
}

// renderConfigCard renders the configuration card.
func (m *Model) renderConfigCard() string {
	if m.config == nil {
		return m.card("Configuration", styles.HelpStyle.Render("Configuration not loaded"))
	}
	c := m.config

	metricsAddr := c.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = "disabled"
	}

	return m.card("Configuration",
		m.renderConfigRow("Database", c.DatabasePath),
		m.renderConfigRow("Log File", c.LogPath),
		m.renderConfigRow("Log Level", c.LogLevel),
		m.renderConfigRow("Metrics", metricsAddr),
		m.renderConfigRow("Session", c.SessionName),
		m.renderConfigRow("Pyramid", fmt.Sprintf("%d bins/tile, branching %d", c.BinsPerTile, c.Branching)),
		m.renderConfigRow("Tile Cache", fmt.Sprintf("%d tiles per channel", c.CacheCapacity)),
		m.renderConfigRow("Workers", fmt.Sprintf("%d", c.Workers)),
		m.renderConfigRow("Watch Debounce", c.WatchDebounce.String()),
		m.renderConfigRow("Notifications", fmt.Sprintf("%t", c.NotifyErrors)),
	)
}

// renderConfigRow renders a configuration key-value row.
func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderDatasetCard renders the dataset and its channels.
func (m *Model) renderDatasetCard() string {
	ds := m.state.GetDataset()
	if ds == nil {
		return m.card("Dataset", styles.HelpStyle.Render("No dataset loaded"))
	}

	rate := "unknown"
	if ds.FrameRate > 0 {
		rate = fmt.Sprintf("%g fps", ds.FrameRate)
	}

	rows := []string{
		m.renderConfigRow("Name", ds.Name),
		m.renderConfigRow("Frames", fmt.Sprintf("%d (%s)", ds.Duration, ds.Timecode(ds.Duration))),
		m.renderConfigRow("Frame Rate", rate),
		"",
	}
	for _, c := range m.state.GetChannels() {
		line := fmt.Sprintf("%-12s %-12s %s", c.ID, c.Cardinality, c.Aggregator)
		if c.Description != "" {
			line += styles.HelpStyle.Render("  " + c.Description)
		}
		rows = append(rows, line)
	}

	return m.card("Dataset", rows...)
}

// renderEngineCard renders tile cache and aggregation counters.
func (m *Model) renderEngineCard() string {
	stats := m.state.GetStats()
	if stats == nil {
		return m.card("Aggregation", styles.HelpStyle.Render("Waiting for statistics..."))
	}
	t := stats.Tiles
	width := m.cardWidth() - 6

	capacity := 0
	if m.config != nil {
		capacity = m.config.CacheCapacity * len(m.state.GetChannels())
	}

	rows := []string{
		m.gauge.View(t.Ready+t.Stale, max(capacity, t.Tiles), "Cached tiles", width),
		m.renderConfigRow("Tiles", fmt.Sprintf("%d ready, %d stale, %d pending, %d failed",
			t.Ready, t.Stale, t.Pending, t.Failed)),
		m.renderConfigRow("Pinned", fmt.Sprintf("%d", t.Pinned)),
		m.renderConfigRow("Evictions", fmt.Sprintf("%d", t.Evictions)),
		m.renderConfigRow("Jobs", fmt.Sprintf("%d queued, %d running", t.Scheduler.Queued, t.Scheduler.Running)),
	}

	if len(stats.Failing) > 0 {
		rows = append(rows, m.renderConfigRow("Failing", styles.ErrorTextStyle.Render(strings.Join(stats.Failing, ", "))))
	}

	if count, recent := m.state.GetEdits(); count > 0 {
		last := recent[len(recent)-1]
		rows = append(rows, m.renderConfigRow("External Edits",
			fmt.Sprintf("%d (last: %s frames %d-%d)", count, last.Channel, last.Start, last.End-1)))
	}

	if len(stats.Totals) > 0 {
		keys := slices.Sorted(maps.Keys(stats.Totals))
		values := make([]float64, len(keys))
		labels := make([]string, len(keys))
		for i, k := range keys {
			values[i] = stats.Totals[k]
			labels[i] = strings.TrimSuffix(strings.TrimPrefix(k, "framescope_"), "_total")
		}
		rows = append(rows, "", components.RenderBarChart(values, labels, width))
	}

	if len(m.queueHistory) > 1 {
		rows = append(rows, "", components.RenderLineChart(m.queueHistory, width-10, 5, "aggregation queue depth"))
	}

	return m.card("Aggregation", rows...)
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	return m.card("About framescope",
		m.renderConfigRow("Version", version.GetVersion()),
		m.renderConfigRow("Build Date", version.GetDate()),
		m.renderConfigRow("Git Commit", version.GetCommit()),
		m.renderConfigRow("Go Version", runtime.Version()),
		m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	)
}
