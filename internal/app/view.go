package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/framescope/internal/ui/styles"
)

// toastTop is the first screen row used by the toast stack.
const toastTop = 2

// View renders the application UI.
func (m *Model) View() string {
	if !m.ready {
		return m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View()))
	}

	var b strings.Builder
	b.WriteString(m.renderNavbar())
	b.WriteString("\n")
	if tab := m.currentTab(); tab != nil {
		b.WriteString(tab.View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	lines := strings.Split(b.String(), "\n")
	for len(lines) < m.height {
		lines = append(lines, "")
	}

	if m.showHelp {
		help := m.renderHelp()
		x := (m.width - lipgloss.Width(help)) / 2
		y := (m.height - lipgloss.Height(help)) / 2
		lines = overlay(lines, help, max(x, 0), max(y, 0))
	}

	if toasts := m.renderNotifications(); toasts != "" {
		x := m.width - lipgloss.Width(toasts) - 2
		lines = overlay(lines, toasts, max(x, 0), toastTop)
	}

	return strings.Join(lines, "\n")
}

// overlay draws block over lines with its top-left corner at column x of
// row y. Rows past the end of lines are dropped.
func overlay(lines []string, block string, x, y int) []string {
	for i, row := range strings.Split(block, "\n") {
		if y+i >= len(lines) {
			break
		}
		base := lines[y+i]
		left := ansi.Truncate(base, x, "")
		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		right := ansi.TruncateLeft(base, x+lipgloss.Width(row), "")
		lines[y+i] = left + row + right
	}
	return lines
}

// renderNavbar renders the tab bar with a dataset summary on the right.
func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, tabCount)
	for id := range tabCount {
		if id == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", id+1, id)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", id+1, id)))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if ds := m.state.GetDataset(); ds != nil {
		summary := m.styles.Summary.Render(fmt.Sprintf("%s | %d frames | %d channels",
			ds.Name, ds.Duration, len(m.state.GetChannels())))
		if gap := m.width - 2 - lipgloss.Width(bar) - lipgloss.Width(summary); gap > 0 {
			bar += strings.Repeat(" ", gap) + summary
		}
	}

	return m.styles.TabBar.Width(m.width).Render(bar)
}

// renderNotifications stacks the active toasts, newest last.
func (m *Model) renderNotifications() string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return ""
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		prefix := "[" + strings.ToUpper(n.Type.String()) + "]"
		if n.Type == NotificationLoading {
			prefix = m.spinner.View()
		}
		content := m.styles.Notification[n.Type].Render(prefix + " " + n.Message)
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return lipgloss.JoinVertical(lipgloss.Right, toasts...)
}

// renderHelp builds the help panel from the global and active tab bindings.
func (m *Model) renderHelp() string {
	lines := []string{m.styles.Title.Render("Keyboard Shortcuts"), ""}

	section := func(title string, groups [][]key.Binding) {
		lines = append(lines, m.styles.Highlight.Render(title))
		for _, group := range groups {
			for _, b := range group {
				lines = append(lines, fmt.Sprintf("  %-10s %s", b.Help().Key, b.Help().Desc))
			}
		}
		lines = append(lines, "")
	}

	section("General", m.keymap.FullHelp())
	if tab := m.currentTab(); tab != nil {
		section(m.activeTab.String()+" Tab", tab.FullHelp())
	}

	lines = append(lines,
		m.styles.Highlight.Render("Mouse"),
		"  wheel      zoom around pointer",
		"  click      seek",
		"  shift+drag pan",
		"  ctrl+drag  select frames",
		"",
		m.styles.Subtle.Render("Press ? or Esc to close"),
	)

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	return m.styles.Content.Render(fmt.Sprintf("%s\n\n%s",
		m.activeTab, m.styles.Subtle.Render("This view is unavailable without a dataset.")))
}
