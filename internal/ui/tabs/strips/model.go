// Package strips provides the timeline tab: one strip per channel under a
// shared frame ruler, driven by keyboard and mouse.
package strips

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/framescope/internal/app"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/timeline"
	"github.com/j-veylop/framescope/internal/ui/components"
	"github.com/j-veylop/framescope/internal/viewport"
)

const (
	// labelWidth is the width of the channel name column.
	labelWidth = 12
	// gutter separates the label column from the strip.
	gutter = 2
	// leftMargin is the blank space left of the label column.
	leftMargin = 1
	// stripLeft is the screen column of the first strip column.
	stripLeft = leftMargin + labelWidth + gutter
)

// keyMap defines the key bindings specific to the timeline tab.
type keyMap struct {
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	ZoomReset   key.Binding
	PanLeft     key.Binding
	PanRight    key.Binding
	StepBack    key.Binding
	StepForward key.Binding
	First       key.Binding
	Last        key.Binding
	StartLeft   key.Binding
	StartRight  key.Binding
	EndLeft     key.Binding
	EndRight    key.Binding
	SelStart    key.Binding
	ClearSel    key.Binding
}

// defaultKeyMap returns the default key bindings for the timeline tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ZoomIn:      key.NewBinding(key.WithKeys("z", "+", "="), key.WithHelp("z/+", "zoom in")),
		ZoomOut:     key.NewBinding(key.WithKeys("x", "-"), key.WithHelp("x/-", "zoom out")),
		ZoomReset:   key.NewBinding(key.WithKeys("Z", "0"), key.WithHelp("Z/0", "show all")),
		PanLeft:     key.NewBinding(key.WithKeys("a", "shift+left"), key.WithHelp("a", "pan left")),
		PanRight:    key.NewBinding(key.WithKeys("d", "shift+right"), key.WithHelp("d", "pan right")),
		StepBack:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous frame")),
		StepForward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next frame")),
		First:       key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "first frame")),
		Last:        key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "last frame")),
		StartLeft:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "selection start -1")),
		StartRight:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "selection start +1")),
		EndLeft:     key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "selection end -1")),
		EndRight:    key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "selection end +1")),
		SelStart:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "go to selection")),
		ClearSel:    key.NewBinding(key.WithKeys("esc", "s", "c"), key.WithHelp("s", "clear selection")),
	}
}

// bindings pairs every key binding with its viewport action.
func (k keyMap) bindings() []struct {
	binding key.Binding
	action  viewport.Action
} {
	return []struct {
		binding key.Binding
		action  viewport.Action
	}{
		{k.ZoomIn, viewport.ZoomIn},
		{k.ZoomOut, viewport.ZoomOut},
		{k.ZoomReset, viewport.ZoomReset},
		{k.PanLeft, viewport.PanLeft},
		{k.PanRight, viewport.PanRight},
		{k.StepBack, viewport.StepBack},
		{k.StepForward, viewport.StepForward},
		{k.First, viewport.GoFirst},
		{k.Last, viewport.GoLast},
		{k.StartLeft, viewport.NudgeStartLeft},
		{k.StartRight, viewport.NudgeStartRight},
		{k.EndLeft, viewport.NudgeEndLeft},
		{k.EndRight, viewport.NudgeEndRight},
		{k.SelStart, viewport.GoSelectionStart},
		{k.ClearSel, viewport.ClearSelection},
	}
}

type dragMode int

const (
	dragNone dragMode = iota
	dragScrub
	dragPan
	dragSelect
)

// Model represents the timeline tab state.
type Model struct {
	state    *app.State
	engine   *timeline.Engine
	ctrl     *viewport.Controller
	keys     keyMap
	activity components.Activity

	width      int
	height     int
	stripWidth int

	drag  dragMode
	lastX int

	// status is a transient message shown in the footer.
	status string
}

// New creates a timeline tab over engine. engine may be nil when no dataset
// is loaded; the tab then shows a placeholder.
func New(state *app.State, engine *timeline.Engine, zoomStep float64) *Model {
	m := &Model{
		state:    state,
		engine:   engine,
		keys:     defaultKeyMap(),
		activity: components.NewActivity(),
	}
	if engine != nil {
		m.ctrl = viewport.NewController(engine.Viewport(), zoomStep)
	}
	return m
}

// Init initializes the timeline tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the timeline tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.handleKeyMsg(msg)
	case tea.MouseMsg:
		m.handleMouseMsg(msg)
	case spinner.TickMsg:
		m.activity = m.activity.Update(msg)
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) {
	if m.ctrl == nil {
		return
	}
	for _, b := range m.keys.bindings() {
		if key.Matches(msg, b.binding) {
			m.apply(m.ctrl.Do(b.action))
			return
		}
	}
}

func (m *Model) handleMouseMsg(msg tea.MouseMsg) {
	if m.ctrl == nil {
		return
	}
	x := msg.X - stripLeft

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.apply(m.ctrl.OnWheel(1, m.clampX(x)))
		case tea.MouseButtonWheelDown:
			m.apply(m.ctrl.OnWheel(-1, m.clampX(x)))
		case tea.MouseButtonLeft:
			if x < 0 || x >= m.stripWidth {
				return
			}
			m.beginDrag(msg, x)
		}

	case tea.MouseActionMotion:
		m.continueDrag(x)

	case tea.MouseActionRelease:
		if m.drag == dragSelect {
			m.ctrl.EndSelect()
		}
		m.drag = dragNone
	}
}

func (m *Model) beginDrag(msg tea.MouseMsg, x int) {
	switch {
	case msg.Ctrl:
		m.drag = dragSelect
		m.apply(m.ctrl.BeginSelect(float64(x) + 0.5))
	case msg.Shift || msg.Alt:
		m.drag = dragPan
		m.lastX = x
	default:
		m.drag = dragScrub
		m.apply(m.ctrl.OnClick(float64(x) + 0.5))
	}
}

func (m *Model) continueDrag(x int) {
	cx := m.clampX(x)
	switch m.drag {
	case dragSelect:
		m.apply(m.ctrl.ExtendSelect(cx))
	case dragPan:
		if dx := x - m.lastX; dx != 0 {
			m.apply(m.ctrl.OnDrag(float64(dx)))
			m.lastX = x
		}
	case dragScrub:
		m.apply(m.ctrl.OnClick(cx))
	}
}

// clampX converts a strip column to the center of that column, clamped to
// the strip.
func (m *Model) clampX(x int) float64 {
	return float64(min(max(x, 0), max(m.stripWidth-1, 0))) + 0.5
}

// apply records the outcome of a viewport command for the footer.
func (m *Model) apply(err error) {
	switch {
	case err == nil:
		m.status = ""
	case errors.Is(err, viewport.ErrNoSelection):
		m.status = "no selection"
	default:
		m.status = err.Error()
		logger.Debug("Viewport command rejected", "error", err)
	}
}

// SetSize sets the available size for the timeline tab and resizes the
// strips to match.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.stripWidth = max(width-stripLeft-leftMargin, 1)

	if m.engine == nil {
		return
	}
	if err := m.engine.SetWidth(m.stripWidth); err != nil {
		logger.Error("Failed to resize strips", "width", m.stripWidth, "error", err)
	}
	m.ctrl.SetWidth(m.stripWidth)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ZoomIn, m.keys.ZoomOut, m.keys.ZoomReset,
		m.keys.PanLeft, m.keys.PanRight,
		m.keys.StepBack, m.keys.StepForward,
		m.keys.ClearSel,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ZoomIn, m.keys.ZoomOut, m.keys.ZoomReset},
		{m.keys.PanLeft, m.keys.PanRight, m.keys.StepBack, m.keys.StepForward, m.keys.First, m.keys.Last},
		{m.keys.StartLeft, m.keys.StartRight, m.keys.EndLeft, m.keys.EndRight, m.keys.SelStart, m.keys.ClearSel},
	}
}
