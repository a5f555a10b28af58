package strips

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/framescope/internal/app"
	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/models"
	"github.com/j-veylop/framescope/internal/timeline"
)

const testFrames = 200

// newTestTab builds a tab over a 200-frame dataset drawn 100 columns wide, so
// every column holds two frames.
func newTestTab(t *testing.T) (*Model, *timeline.Engine) {
	t.Helper()

	labels := make(channel.SliceSource, testFrames)
	score := make(channel.SliceSource, testFrames)
	for i := range testFrames {
		labels[i] = float64(i / 50 % 3)
		score[i] = float64(i)
	}

	reg := channel.NewRegistry()
	if err := reg.Register("labels", labels, channel.WinnerTakesAll(channel.VoteForeground), channel.Categorical); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("score", score, channel.Mean(), channel.Numeric); err != nil {
		t.Fatal(err)
	}

	cfg := timeline.DefaultConfig()
	cfg.BinsPerTile = 16
	cfg.Workers = 2
	e, err := timeline.New(testFrames, reg, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })

	state := app.NewState()
	state.SetDataset(&models.Dataset{Name: "clip", Duration: testFrames}, []models.ChannelSpec{
		{ID: "labels", Cardinality: "categorical", Labels: map[int]string{0: "background", 1: "person", 2: "car"}},
		{ID: "score", Cardinality: "numeric"},
	})

	m := New(state, e, 1.25)
	m.SetSize(stripLeft+100+leftMargin, 30)
	return m, e
}

func waitIdle(t *testing.T, e *timeline.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(col int, mods ...string) tea.MouseMsg {
	msg := tea.MouseMsg{X: stripLeft + col, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	for _, mod := range mods {
		switch mod {
		case "ctrl":
			msg.Ctrl = true
		case "shift":
			msg.Shift = true
		}
	}
	return msg
}

func motion(col int) tea.MouseMsg {
	return tea.MouseMsg{X: stripLeft + col, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
}

func release(col int) tea.MouseMsg {
	return tea.MouseMsg{X: stripLeft + col, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft}
}

func TestNew_WithoutEngine(t *testing.T) {
	m := New(app.NewState(), nil, 1.25)
	m.SetSize(80, 20)

	m.Update(runes("z"))
	m.Update(press(3))

	if !strings.Contains(ansi.Strip(m.View()), "No dataset loaded") {
		t.Error("View should show the placeholder without an engine")
	}
}

func TestModel_Init(t *testing.T) {
	m, _ := newTestTab(t)
	if m.Init() != nil {
		t.Error("Init should not start a tick loop of its own")
	}
	before := m.activity.View(1, 0)
	m.Update(spinner.TickMsg{})
	if m.activity.View(1, 0) == before {
		t.Error("spinner ticks should animate the activity indicator")
	}
}

func TestSetSize_ResizesEngine(t *testing.T) {
	m, e := newTestTab(t)
	if m.stripWidth != 100 {
		t.Fatalf("stripWidth = %d, want 100", m.stripWidth)
	}
	p, err := e.Projection()
	if err != nil {
		t.Fatal(err)
	}
	if p.Pixels() != 100 {
		t.Errorf("engine width = %d, want 100", p.Pixels())
	}

	m.SetSize(5, 10)
	if m.stripWidth != 1 {
		t.Errorf("stripWidth = %d, want 1 for a tiny window", m.stripWidth)
	}
}

func TestKeys_DriveViewport(t *testing.T) {
	m, e := newTestTab(t)
	vp := e.Viewport()

	m.Update(runes("z"))
	if w := vp.State().Width(); math.Abs(w-160) > 1e-9 {
		t.Errorf("width after zoom in = %v, want 160", w)
	}

	m.Update(runes("Z"))
	if w := vp.State().Width(); w != testFrames {
		t.Errorf("width after reset = %v, want %d", w, testFrames)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if got := vp.State().Playhead; got != 1 {
		t.Errorf("playhead = %d, want 1", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnd})
	if got := vp.State().Playhead; got != testFrames-1 {
		t.Errorf("playhead after end = %d, want %d", got, testFrames-1)
	}

	m.Update(runes("p"))
	if m.status != "no selection" {
		t.Errorf("status = %q, want %q", m.status, "no selection")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyHome})
	if m.status != "" {
		t.Errorf("status should clear after a successful command, got %q", m.status)
	}
}

func TestMouse_ClickSeeks(t *testing.T) {
	m, e := newTestTab(t)

	m.Update(press(50))
	if got := e.Viewport().State().Playhead; got != 101 {
		t.Errorf("playhead = %d, want 101", got)
	}

	m.Update(motion(60))
	if got := e.Viewport().State().Playhead; got != 121 {
		t.Errorf("playhead after scrub = %d, want 121", got)
	}

	m.Update(release(60))
	m.Update(tea.MouseMsg{X: stripLeft + 70, Action: tea.MouseActionMotion})
	if got := e.Viewport().State().Playhead; got != 121 {
		t.Errorf("motion after release moved the playhead to %d", got)
	}

	m.Update(press(-3))
	if got := e.Viewport().State().Playhead; got != 121 {
		t.Errorf("clicks on the label column should be ignored, playhead = %d", got)
	}
}

func TestMouse_CtrlDragSelects(t *testing.T) {
	m, e := newTestTab(t)

	m.Update(press(10, "ctrl"))
	m.Update(motion(19))
	m.Update(release(19))

	vs := e.Viewport().State()
	if !vs.HasSelection {
		t.Fatal("ctrl+drag should select")
	}
	if vs.Selection.Start != 21 || vs.Selection.End != 39 {
		t.Errorf("selection = [%d, %d], want [21, 39]", vs.Selection.Start, vs.Selection.End)
	}

	m.Update(runes("]"))
	if got := e.Viewport().State().Selection.Start; got != 22 {
		t.Errorf("selection start after ] = %d, want 22", got)
	}
	m.Update(runes("p"))
	if got := e.Viewport().State().Playhead; got != 22 {
		t.Errorf("playhead after p = %d, want 22", got)
	}
	m.Update(runes("c"))
	if e.Viewport().State().HasSelection {
		t.Error("c should clear the selection")
	}
}

func TestMouse_ShiftDragPans(t *testing.T) {
	m, e := newTestTab(t)
	m.Update(runes("z"))
	m.Update(runes("z"))
	before := e.Viewport().State().Start

	m.Update(press(50, "shift"))
	m.Update(motion(40))
	m.Update(release(40))

	if after := e.Viewport().State().Start; after <= before {
		t.Errorf("dragging left should pan right: start %v -> %v", before, after)
	}
	if got := e.Viewport().State().Playhead; got != 0 {
		t.Errorf("panning moved the playhead to %d", got)
	}
}

func TestMouse_WheelZooms(t *testing.T) {
	m, e := newTestTab(t)

	m.Update(tea.MouseMsg{X: stripLeft + 50, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	zoomed := e.Viewport().State().Width()
	if zoomed >= testFrames {
		t.Fatalf("wheel up should zoom in, width = %v", zoomed)
	}

	m.Update(tea.MouseMsg{X: stripLeft + 50, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	if w := e.Viewport().State().Width(); w <= zoomed {
		t.Errorf("wheel down should zoom out, width = %v", w)
	}
}

func TestOverlay(t *testing.T) {
	m, e := newTestTab(t)
	m.Update(press(50))
	m.Update(release(50))
	m.Update(press(10, "ctrl"))
	m.Update(motion(19))
	m.Update(release(19))

	p, err := e.Projection()
	if err != nil {
		t.Fatal(err)
	}
	opts := overlay(p, e.Viewport().State())
	if opts.Playhead != 50 {
		t.Errorf("playhead column = %d, want 50", opts.Playhead)
	}
	if opts.SelStart != 10 || opts.SelEnd != 19 {
		t.Errorf("selection columns = [%d, %d], want [10, 19]", opts.SelStart, opts.SelEnd)
	}
}

func TestView(t *testing.T) {
	m, e := newTestTab(t)
	waitIdle(t, e)

	view := ansi.Strip(m.View())
	for _, want := range []string{"clip", "labels", "score", "person", "car", "▶ #0", "score=0"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "·") {
		t.Error("no column should be pending once aggregation is idle")
	}

	state := m.state
	state.RecordEdits([]models.ChangeRange{{Channel: "score", Start: 0, End: 4}})
	if !strings.Contains(ansi.Strip(m.View()), "1 external edits") {
		t.Error("footer should count external edits")
	}
}

func TestHelp(t *testing.T) {
	m, _ := newTestTab(t)
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) != 3 {
		t.Errorf("FullHelp has %d groups, want 3", len(m.FullHelp()))
	}
}
