// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/framescope/internal/services"
	"github.com/j-veylop/framescope/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabTimeline is the ID for the timeline tab.
	TabTimeline TabID = iota
	// TabInfo is the ID for the info tab.
	TabInfo

	tabCount
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabTimeline:
		return "Timeline"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// Styles defines the application chrome styles.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	Summary     lipgloss.Style

	Notification map[NotificationType]lipgloss.Style
	Toast        lipgloss.Style

	Content   lipgloss.Style
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(styles.Subtle),
		ActiveTab:   lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Padding(0, 2),
		InactiveTab: lipgloss.NewStyle().Foreground(styles.TextMuted).Padding(0, 2),
		Summary:     lipgloss.NewStyle().Foreground(styles.TextSecondary),

		Notification: map[NotificationType]lipgloss.Style{
			NotificationSuccess: lipgloss.NewStyle().Foreground(styles.Success),
			NotificationError:   lipgloss.NewStyle().Foreground(styles.Error).Bold(true),
			NotificationWarning: lipgloss.NewStyle().Foreground(styles.Warning),
			NotificationInfo:    lipgloss.NewStyle().Foreground(styles.Info),
			NotificationLoading: lipgloss.NewStyle().Foreground(styles.Info),
		},
		Toast: styles.ToastStyle,

		Content:   lipgloss.NewStyle().Padding(1, 2),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(styles.Primary),
		Subtle:    lipgloss.NewStyle().Foreground(styles.TextMuted),
		Highlight: lipgloss.NewStyle().Foreground(styles.Secondary),
	}
}

// chromeHeight is the number of rows taken by the tab bar and its border.
const chromeHeight = 2

// Model is the main application model.
type Model struct {
	activeTab TabID
	tabs      []Tab

	state    *State
	services *services.Manager
	commands *Commands
	keymap   KeyMap
	styles   Styles

	spinner spinner.Model

	width  int
	height int

	showHelp bool
	ready    bool

	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model. mgr may be nil in tests.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		activeTab: TabTimeline,
		tabs:      make([]Tab, tabCount),
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(mgr),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model, indexed by TabID.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.ready {
		m.resizeTabs()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetServices returns the service manager.
func (m *Model) GetServices() *services.Manager {
	return m.services
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// GetWidth returns the window width.
func (m *Model) GetWidth() int {
	return m.width
}

// GetHeight returns the window height.
func (m *Model) GetHeight() int {
	return m.height
}

// IsReady returns true once the first window size has been received.
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading dataset...")

	cmds := []tea.Cmd{m.spinner.Tick, m.commands.DefaultTick()}
	if m.services != nil {
		cmds = append(cmds, m.commands.SubscribeToServices(), m.commands.LoadInitialData())
	}
	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model. Everything except global
// keys is also forwarded to the active tab.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resizeTabs()

	case tea.KeyMsg:
		if m.keymap.global(msg, m.showHelp) {
			return m, m.handleKeyMsg(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if tab := m.currentTab(); tab != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = tab.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds := []tea.Cmd{m.commands.DefaultTick()}
		if m.services != nil {
			cmds = append(cmds, m.commands.LoadStats())
		}
		return cmds

	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		return []tea.Cmd{waitForServiceEventCmd(m.eventChannel)}

	case ServiceEventMsg:
		cmds := []tea.Cmd{m.handleServiceEvent(msg.Event)}
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
		return cmds

	case DatasetLoadedMsg:
		m.state.SetDataset(msg.Dataset, msg.Channels)
		m.state.SetStats(msg.Stats)
		m.finishLoading("initial")

	case StatsLoadedMsg:
		m.state.SetStats(msg.Stats)
		m.finishLoading("stats")

	case SessionSavedMsg:
		return []tea.Cmd{m.handleSessionSaved(msg)}

	case FramesInvalidatedMsg:
		m.state.RecordEdits(msg.Ranges)

	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			return []tea.Cmd{m.commands.ClearNotification(id, msg.Duration)}
		}

	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)

	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()

	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing...")

	case StopLoadingMsg:
		m.finishLoading(msg.Resource)

	case ErrorMsg:
		return []tea.Cmd{m.commands.NotifyError(msg.Error.Error())}

	case RefreshMsg:
		return m.refresh(msg.Resource)

	case TabSwitchMsg:
		m.switchTab(msg.Tab)

	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return nil
}

// finishLoading clears the loading flag for resource and drops the loading
// toast once nothing else is in flight.
func (m *Model) finishLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleSessionSaved(msg SessionSavedMsg) tea.Cmd {
	if msg.Error != nil {
		return m.commands.NotifyError(fmt.Sprintf("Failed to save session: %v", msg.Error))
	}
	return m.commands.NotifySuccess("Session saved")
}

// refresh reloads resource ("all" or "stats").
func (m *Model) refresh(resource string) []tea.Cmd {
	if m.services == nil {
		return nil
	}
	if resource == "all" {
		return []tea.Cmd{m.commands.LoadInitialData()}
	}
	return []tea.Cmd{
		func() tea.Msg { return StartLoadingMsg{Resource: "stats"} },
		m.commands.LoadStats(),
	}
}

func (m *Model) currentTab() Tab {
	if int(m.activeTab) < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return nil
}

func (m *Model) switchTab(id TabID) {
	if n := len(m.tabs); n > 0 {
		m.activeTab = TabID((int(id)%n + n) % n)
	}
	m.resizeTabs()
}

func (m *Model) resizeTabs() {
	height := max(m.height-chromeHeight, 0)
	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, height)
		}
	}
}

// handleKeyMsg handles global keys.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Escape):
		m.showHelp = false

	case key.Matches(msg, m.keymap.Tab1):
		m.switchTab(TabTimeline)

	case key.Matches(msg, m.keymap.Tab2):
		m.switchTab(TabInfo)

	case key.Matches(msg, m.keymap.NextTab):
		if !m.showHelp {
			m.switchTab(m.activeTab + 1)
		}

	case key.Matches(msg, m.keymap.PrevTab):
		if !m.showHelp {
			m.switchTab(m.activeTab - 1)
		}

	case key.Matches(msg, m.keymap.Refresh):
		return tea.Batch(m.refresh("stats")...)

	case key.Matches(msg, m.keymap.Save):
		if m.services != nil {
			return m.commands.SaveSession()
		}
	}

	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.TilesUpdatedEvent:
		return func() tea.Msg { return TilesUpdatedMsg{} }

	case services.FramesInvalidatedEvent:
		m.state.RecordEdits(e.Ranges)
		frames := 0
		for _, r := range e.Ranges {
			frames += r.Len()
		}
		return m.commands.NotifyInfo(fmt.Sprintf("Reloaded %d edited frames", frames))

	case services.ErrorEvent:
		if e.Channel != "" {
			return m.commands.NotifyError(fmt.Sprintf("[%s] %s: %v", e.Service, e.Channel, e.Error))
		}
		return m.commands.NotifyError(fmt.Sprintf("[%s] %v", e.Service, e.Error))

	case services.StatsEvent:
		m.state.SetStats(e)
	}

	return nil
}
