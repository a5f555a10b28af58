package components

import (
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func TestActivity(t *testing.T) {
	a := NewActivity()
	if got := a.View(0, 0); got != "" {
		t.Errorf("idle View = %q, want empty", got)
	}

	first := a.View(2, 1)
	if !strings.Contains(ansi.Strip(first), "3 jobs") {
		t.Errorf("View = %q, want job count", ansi.Strip(first))
	}
	if !strings.Contains(ansi.Strip(a.View(1, 0)), "1 job") {
		t.Error("single job should use the singular")
	}

	a = a.Update(spinner.TickMsg{ID: 42})
	if a.frame != 1 {
		t.Errorf("frame = %d after one tick, want 1", a.frame)
	}
	if a.View(2, 1) == first {
		t.Error("tick should advance the animation")
	}

	for range len(a.frames) {
		a = a.Update(spinner.TickMsg{})
	}
	if a.frame != 1 {
		t.Errorf("frame = %d, animation should wrap", a.frame)
	}

	if a.Update(nil).frame != a.frame {
		t.Error("non-tick messages should not animate")
	}
}

func TestRenderLineChart(t *testing.T) {
	data := []float64{1, 2, math.NaN(), 4}
	s := RenderLineChart(data, 20, 5, "Test")
	if !strings.Contains(s, "Test") {
		t.Error("RenderLineChart should include the caption")
	}

	empty := RenderLineChart([]float64{math.NaN(), math.NaN()}, 20, 5, "x")
	if !strings.Contains(empty, "No data") {
		t.Error("all-missing data should render the empty message")
	}
}

func TestFillGaps(t *testing.T) {
	got := fillGaps([]float64{math.NaN(), 1, math.NaN(), 3})
	want := []float64{1, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("fillGaps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fillGaps[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBoundsAndLevel(t *testing.T) {
	lo, hi, ok := Bounds([]float64{math.NaN(), 3, -1, 7})
	if !ok || lo != -1 || hi != 7 {
		t.Errorf("Bounds = %v, %v, %v; want -1, 7, true", lo, hi, ok)
	}
	if _, _, ok := Bounds([]float64{math.NaN()}); ok {
		t.Error("Bounds of only NaN should not be ok")
	}

	tests := []struct {
		v, lo, hi float64
		want      int
	}{
		{0, 0, 7, 0},
		{7, 0, 7, 7},
		{3.5, 0, 7, 3},
		{-5, 0, 7, 0},
		{99, 0, 7, 7},
		{4, 4, 4, 7},
	}
	for _, tt := range tests {
		if got := Level(tt.v, tt.lo, tt.hi, 8); got != tt.want {
			t.Errorf("Level(%v, %v, %v) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestRenderBarChart(t *testing.T) {
	s := RenderBarChart([]float64{10, 20}, []string{"hits", "misses"}, 30)
	if !strings.Contains(s, "misses") || !strings.Contains(s, "20") {
		t.Errorf("RenderBarChart = %q", s)
	}
	if RenderBarChart(nil, nil, 30) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestRenderSparkline(t *testing.T) {
	s := RenderSparkline([]float64{0, math.NaN(), 7}, 10)
	if s != "▁ █" {
		t.Errorf("RenderSparkline = %q, want %q", s, "▁ █")
	}
	if RenderSparkline(nil, 10) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestRenderLegend(t *testing.T) {
	items := []LegendItem{
		{Label: "person", Color: lipgloss.Color("#ffffff")},
	}
	if !strings.Contains(RenderLegend(items), "person") {
		t.Error("RenderLegend should contain the label")
	}
}

func TestRenderCategoricalStrip(t *testing.T) {
	cells := []Cell{
		{Value: 1},
		{Value: math.NaN()},
		{Value: 2, Failed: true},
		{Value: 0, Approximate: true},
	}
	got := ansi.Strip(RenderCategoricalStrip(cells, NoOverlay))
	if got != "█·!█" {
		t.Errorf("strip = %q, want %q", got, "█·!█")
	}
	if w := lipgloss.Width(RenderCategoricalStrip(cells, NoOverlay)); w != len(cells) {
		t.Errorf("width = %d, want %d", w, len(cells))
	}
}

func TestRenderNumericStrip(t *testing.T) {
	cells := []Cell{{Value: 0}, {Value: 7}, {Value: 3.5}}
	got := ansi.Strip(RenderNumericStrip(cells, 0, 7, NoOverlay))
	if got != "▁█▄" {
		t.Errorf("strip = %q, want %q", got, "▁█▄")
	}
}

func TestRenderStrip_Overlays(t *testing.T) {
	cells := []Cell{{Value: 1}, {Value: 1}, {Value: 1}, {Value: 1}}
	opts := StripOptions{Playhead: 2, SelStart: 0, SelEnd: 1}
	got := ansi.Strip(RenderCategoricalStrip(cells, opts))
	if got != "██┃█" {
		t.Errorf("strip = %q, want %q", got, "██┃█")
	}
}

func TestRenderRuler(t *testing.T) {
	r := RenderRuler(20, 10, func(col int) string { return "#" + string(rune('0'+col/10)) })
	lines := strings.Split(ansi.Strip(r), "\n")
	if len(lines) != 2 {
		t.Fatalf("ruler has %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "#0") || !strings.Contains(lines[0], "#1") {
		t.Errorf("labels = %q", lines[0])
	}
	if []rune(lines[1])[10] != '┬' {
		t.Errorf("tick line = %q", lines[1])
	}
	if RenderRuler(0, 10, nil) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestRenderGradientBar(t *testing.T) {
	s := ansi.Strip(RenderGradientBar(50.0, 10))
	if s != "█████░░░░░" {
		t.Errorf("RenderGradientBar = %q", s)
	}
}

func TestInterpolateColor(t *testing.T) {
	if got := interpolateColor("#000000", "#ffffff", 0); got != "#000000" {
		t.Errorf("t=0 gives %s", got)
	}
	if got := interpolateColor("#000000", "#ffffff", 1); got != "#ffffff" {
		t.Errorf("t=1 gives %s", got)
	}
	if got := hexToRGB("zz"); got != [3]int{0, 0, 0} {
		t.Errorf("bad hex gives %v", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge(30)
	view := g.View(12, 64, "Cache", 60)
	if !strings.Contains(view, "12/64") || !strings.Contains(view, "Cache") {
		t.Errorf("Gauge view = %q", view)
	}
	if !strings.Contains(g.View(0, 0, "Queue", 60), "0/0") {
		t.Error("a zero total should still render")
	}
}
