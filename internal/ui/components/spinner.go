package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/framescope/internal/ui/styles"
)

// Activity renders a spinner and a job count while aggregation is running.
// It has no tick loop of its own: every spinner.TickMsg that reaches it
// advances the animation, so it follows the application spinner.
type Activity struct {
	frames []string
	frame  int
	style  lipgloss.Style
	label  lipgloss.Style
}

// NewActivity creates an idle activity indicator.
func NewActivity() Activity {
	return Activity{
		frames: spinner.Dot.Frames,
		style:  lipgloss.NewStyle().Foreground(styles.Primary),
		label:  lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// Update advances the animation on spinner ticks.
func (a Activity) Update(msg tea.Msg) Activity {
	if _, ok := msg.(spinner.TickMsg); ok {
		a.frame = (a.frame + 1) % len(a.frames)
	}
	return a
}

// View renders the indicator for the given job counts, or "" when idle.
func (a Activity) View(queued, running int) string {
	jobs := queued + running
	if jobs == 0 {
		return ""
	}
	noun := "jobs"
	if jobs == 1 {
		noun = "job"
	}
	return a.style.Render(a.frames[a.frame]) + " " + a.label.Render(fmt.Sprintf("%d %s", jobs, noun))
}
