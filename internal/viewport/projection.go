package viewport

import (
	"fmt"
	"math"

	"github.com/j-veylop/framescope/internal/pyramid"
)

// PerFrame is the level returned when a pixel column spans at most one frame;
// the renderer then draws raw per-frame values instead of aggregated bins.
const PerFrame = -1

// roundingSlack absorbs floating point error when mapping a pixel back to the
// frame it was projected from.
const roundingSlack = 1e-6

// Projection maps between frames and pixel columns for one viewport state
// and width. It is a value and safe to share.
type Projection struct {
	layout pyramid.Layout
	start  float64
	width  float64
	px     int
}

// NewProjection builds the projection of s onto px columns.
func NewProjection(layout pyramid.Layout, s State, px int) (Projection, error) {
	if px < 1 {
		return Projection{}, fmt.Errorf("viewport width %d: must be at least one pixel", px)
	}
	if s.Duration != layout.Duration() {
		return Projection{}, fmt.Errorf("viewport duration %d does not match pyramid duration %d", s.Duration, layout.Duration())
	}
	return Projection{layout: layout, start: s.Start, width: s.Width(), px: px}, nil
}

// LevelForPixelWidth returns ceil(log_b(frames/px)) capped at the layout's
// maximum level, or PerFrame when a column holds at most one frame.
func LevelForPixelWidth(layout pyramid.Layout, frames float64, px int) int {
	if px < 1 {
		return layout.MaxLevel()
	}
	ratio := frames / float64(px)
	if ratio <= 1 {
		return PerFrame
	}
	return layout.LevelForRatio(ratio)
}

// Level returns the pyramid level for the current view.
func (p Projection) Level() int {
	return LevelForPixelWidth(p.layout, p.width, p.px)
}

// Pixels returns the viewport width in columns.
func (p Projection) Pixels() int { return p.px }

// FramesPerPixel returns the visible width divided by the pixel width.
func (p Projection) FramesPerPixel() float64 { return p.width / float64(p.px) }

// FrameToPixel returns the horizontal position of frame's left edge.
func (p Projection) FrameToPixel(frame float64) float64 {
	return (frame - p.start) * float64(p.px) / p.width
}

// PixelToFrame returns the frame under pixel position x, clamped to the
// timeline.
func (p Projection) PixelToFrame(x float64) int {
	f := math.Floor(p.start + x*p.width/float64(p.px) + roundingSlack)
	return max(0, min(int(f), p.layout.Duration()-1))
}

// ColumnSpan returns the frames [f0, f1) drawn in column x. Every column
// covers at least one frame.
func (p Projection) ColumnSpan(x int) (f0, f1 int) {
	f0 = p.PixelToFrame(float64(x))
	f1 = p.PixelToFrame(float64(x + 1))
	if x+1 >= p.px {
		f1 = min(int(math.Ceil(p.start+p.width)), p.layout.Duration())
	}
	return f0, max(f1, f0+1)
}

// VisibleTiles returns the ordered tile indices at level covering the view.
// The tiling is shared by every channel. PerFrame maps to level 0.
func (p Projection) VisibleTiles(level int) []int {
	level = max(level, 0)
	f0 := int(math.Floor(p.start))
	f1 := int(math.Ceil(p.start + p.width))
	first, last := p.layout.TileRange(level, f0, f1)

	tiles := make([]int, 0, last-first+1)
	for t := first; t <= last; t++ {
		tiles = append(tiles, t)
	}
	return tiles
}

// NeighborTiles returns the tiles immediately left and right of the visible
// ones at level, when they exist.
func (p Projection) NeighborTiles(level int) []int {
	visible := p.VisibleTiles(level)
	level = max(level, 0)
	var out []int
	if left := visible[0] - 1; left >= 0 {
		out = append(out, left)
	}
	if right := visible[len(visible)-1] + 1; right < p.layout.TileCount(level) {
		out = append(out, right)
	}
	return out
}
