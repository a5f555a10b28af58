// Package styles defines the visual styling for the application.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the framescope theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Background colors
	BgDark   = lipgloss.Color("235")
	BgLight  = lipgloss.Color("237")
	BgAccent = lipgloss.Color("236")

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	// ToastStyle for floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// CategoryColors cycles through distinguishable colors for categorical labels.
// Label 0 is conventionally background and is drawn with BackgroundLabel.
var CategoryColors = []lipgloss.Color{
	lipgloss.Color("39"),  // Blue
	lipgloss.Color("208"), // Orange
	lipgloss.Color("42"),  // Green
	lipgloss.Color("170"), // Magenta
	lipgloss.Color("220"), // Yellow
	lipgloss.Color("51"),  // Cyan
	lipgloss.Color("196"), // Red
	lipgloss.Color("141"), // Lavender
}

// BackgroundLabel is the color of categorical label 0.
var BackgroundLabel = lipgloss.Color("238")

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpDescStyle styles help descriptions.
var HelpDescStyle = lipgloss.NewStyle().
	Foreground(TextSecondary)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// Timeline strip styles.
var (
	// StripLabelStyle styles the channel name column left of each strip.
	StripLabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondary).
			Bold(true)

	// RulerStyle styles the frame ruler above the strips.
	RulerStyle = lipgloss.NewStyle().
			Foreground(TextMuted)

	// PlayheadStyle highlights the playhead column.
	PlayheadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(Primary).
			Bold(true)

	// SelectionStyle marks columns inside the selection.
	SelectionStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("24"))

	// PendingCellStyle is used for columns without any data yet.
	PendingCellStyle = lipgloss.NewStyle().
				Foreground(BgLight)

	// ApproximateCellStyle dims columns drawn from a coarser level.
	ApproximateCellStyle = lipgloss.NewStyle().
				Faint(true)

	// ErrorCellStyle marks columns whose tile failed to aggregate.
	ErrorCellStyle = lipgloss.NewStyle().
			Foreground(Error)

	// StatusBarStyle styles the status line under the strips.
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondary).
			Background(BgAccent).
			Padding(0, 1)
)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

// CategoryColor returns the color of categorical label v.
func CategoryColor(v int) lipgloss.Color {
	if v == 0 {
		return BackgroundLabel
	}
	if v < 0 {
		v = -v
	}
	return CategoryColors[(v-1)%len(CategoryColors)]
}

// GetLevelStyle returns the style for a numeric value at fraction frac of the
// channel's visible range.
func GetLevelStyle(frac float64) lipgloss.Style {
	switch {
	case frac > 0.66:
		return SuccessTextStyle
	case frac > 0.33:
		return InfoTextStyle
	default:
		return lipgloss.NewStyle().Foreground(Secondary)
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
