package viewport

import (
	"errors"
	"math"
)

// DefaultZoomStep is the zoom factor of one wheel notch or key press.
const DefaultZoomStep = 1.25

// Action is a key-bound viewport command.
type Action int

const (
	ZoomIn Action = iota
	ZoomOut
	ZoomReset
	PanLeft
	PanRight
	StepBack
	StepForward
	GoFirst
	GoLast
	ClearSelection
	NudgeStartLeft
	NudgeStartRight
	NudgeEndLeft
	NudgeEndRight
	GoSelectionStart
)

// ErrNoSelection is returned by selection actions when nothing is selected.
var ErrNoSelection = errors.New("no selection")

// panFraction is the share of the visible width moved by one pan key press.
const panFraction = 0.1

// Controller translates pointer and key input into Model calls. It is not
// safe for concurrent use; the UI loop owns it.
type Controller struct {
	model    *Model
	zoomStep float64
	px       int

	selecting    bool
	selectAnchor int
}

// NewController drives m. A zoomStep <= 1 falls back to DefaultZoomStep.
func NewController(m *Model, zoomStep float64) *Controller {
	if zoomStep <= 1 || math.IsNaN(zoomStep) {
		zoomStep = DefaultZoomStep
	}
	return &Controller{model: m, zoomStep: zoomStep, px: 1}
}

// SetWidth records the width in columns of the area input refers to.
func (c *Controller) SetWidth(px int) {
	c.px = max(px, 1)
}

// OnWheel zooms by zoomStep^delta around the frame under anchorPx. Positive
// deltas zoom in.
func (c *Controller) OnWheel(delta, anchorPx float64) error {
	s := c.model.State()
	anchor := c.frameAt(s, anchorPx)
	return c.model.Zoom(math.Pow(c.zoomStep, delta), anchor)
}

// OnDrag pans so the content follows the pointer by dx columns.
func (c *Controller) OnDrag(dx float64) error {
	s := c.model.State()
	return c.model.Pan(-dx * s.Width() / float64(c.px))
}

// OnClick moves the playhead to the frame under column x.
func (c *Controller) OnClick(x float64) error {
	s := c.model.State()
	return c.model.SeekToFrame(int(math.Floor(c.frameAt(s, x))))
}

// BeginSelect starts a range selection at column x.
func (c *Controller) BeginSelect(x float64) error {
	s := c.model.State()
	c.selecting = true
	c.selectAnchor = c.clampFrame(s, c.frameAt(s, x))
	return c.model.SetSelection(c.selectAnchor, c.selectAnchor)
}

// ExtendSelect grows the selection started by BeginSelect to column x.
func (c *Controller) ExtendSelect(x float64) error {
	if !c.selecting {
		return c.BeginSelect(x)
	}
	s := c.model.State()
	f := c.clampFrame(s, c.frameAt(s, x))
	return c.model.SetSelection(min(f, c.selectAnchor), max(f, c.selectAnchor))
}

// EndSelect finishes a drag selection.
func (c *Controller) EndSelect() {
	c.selecting = false
}

// Do performs a key-bound action.
func (c *Controller) Do(a Action) error {
	s := c.model.State()
	switch a {
	case ZoomIn:
		return c.model.Zoom(c.zoomStep, c.keyAnchor(s))
	case ZoomOut:
		return c.model.Zoom(1/c.zoomStep, c.keyAnchor(s))
	case ZoomReset:
		return c.model.Reset()
	case PanLeft:
		return c.model.Pan(-c.panStep(s))
	case PanRight:
		return c.model.Pan(c.panStep(s))
	case StepBack:
		return c.model.SeekToFrame(s.Playhead - 1)
	case StepForward:
		return c.model.SeekToFrame(s.Playhead + 1)
	case GoFirst:
		return c.model.SeekToFrame(0)
	case GoLast:
		return c.model.SeekToFrame(s.Duration - 1)
	case ClearSelection:
		return c.model.ClearSelection()
	case NudgeStartLeft, NudgeStartRight, NudgeEndLeft, NudgeEndRight:
		return c.nudge(s, a)
	case GoSelectionStart:
		if !s.HasSelection {
			return ErrNoSelection
		}
		return c.model.SeekToFrame(s.Selection.Start)
	}
	return nil
}

func (c *Controller) nudge(s State, a Action) error {
	if !s.HasSelection {
		return ErrNoSelection
	}
	sel := s.Selection
	switch a {
	case NudgeStartLeft:
		sel.Start--
	case NudgeStartRight:
		sel.Start++
	case NudgeEndLeft:
		sel.End--
	case NudgeEndRight:
		sel.End++
	}
	return c.model.SetSelection(sel.Start, sel.End)
}

// keyAnchor zooms around the playhead when it is on screen, else the center.
func (c *Controller) keyAnchor(s State) float64 {
	if s.Contains(s.Playhead) {
		return float64(s.Playhead) + 0.5
	}
	return s.Start + s.Width()/2
}

func (c *Controller) panStep(s State) float64 {
	return math.Max(1, math.Round(s.Width()*panFraction))
}

func (c *Controller) frameAt(s State, x float64) float64 {
	x = math.Max(0, math.Min(x, float64(c.px)))
	return s.Start + x*s.Width()/float64(c.px)
}

func (c *Controller) clampFrame(s State, f float64) int {
	return clampI(int(math.Floor(f)), 0, s.Duration-1)
}
