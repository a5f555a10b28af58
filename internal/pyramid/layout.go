// Package pyramid defines the multi-resolution frame indexing shared by every
// timeline channel.
//
// Level 0 holds one frame per bin. Each coarser level multiplies the frames per
// bin by the branching factor, so with the default factor of 2 a bin at level k
// covers 2^k consecutive frames. Bins are grouped into fixed-size tiles; tile t
// at level k covers frames [t*B*2^k, (t+1)*B*2^k).
package pyramid

import (
	"errors"
	"fmt"
	"math"
)

// Default layout parameters.
const (
	DefaultBinsPerTile = 4096
	DefaultBranching   = 2
)

// ErrInvalidLayout is returned when layout parameters cannot describe a pyramid.
var ErrInvalidLayout = errors.New("invalid pyramid layout")

// Layout is an immutable description of a pyramid over a fixed duration.
type Layout struct {
	duration     int
	binsPerTile  int
	branching    int
	framesPerBin []int
}

// New builds a layout for duration frames. The coarsest level is the first one
// whose single bin spans the whole duration.
func New(duration, binsPerTile, branching int) (Layout, error) {
	if duration < 1 {
		return Layout{}, fmt.Errorf("%w: duration %d", ErrInvalidLayout, duration)
	}
	if binsPerTile < 1 {
		return Layout{}, fmt.Errorf("%w: bins per tile %d", ErrInvalidLayout, binsPerTile)
	}
	if branching < 2 {
		return Layout{}, fmt.Errorf("%w: branching factor %d", ErrInvalidLayout, branching)
	}

	fpb := []int{1}
	for fpb[len(fpb)-1] < duration {
		fpb = append(fpb, fpb[len(fpb)-1]*branching)
	}

	return Layout{
		duration:     duration,
		binsPerTile:  binsPerTile,
		branching:    branching,
		framesPerBin: fpb,
	}, nil
}

// MustNew is like New but panics on invalid parameters. Intended for tests and
// package-level defaults.
func MustNew(duration, binsPerTile, branching int) Layout {
	l, err := New(duration, binsPerTile, branching)
	if err != nil {
		panic(err)
	}
	return l
}

// Duration returns the number of frames covered.
func (l Layout) Duration() int { return l.duration }

// BinsPerTile returns the fixed tile size in bins.
func (l Layout) BinsPerTile() int { return l.binsPerTile }

// Branching returns the factor between adjacent levels.
func (l Layout) Branching() int { return l.branching }

// MaxLevel returns the coarsest level.
func (l Layout) MaxLevel() int { return len(l.framesPerBin) - 1 }

// ValidLevel reports whether level exists in the pyramid.
func (l Layout) ValidLevel(level int) bool {
	return level >= 0 && level < len(l.framesPerBin)
}

// FramesPerBin returns the number of frames aggregated into one bin at level.
func (l Layout) FramesPerBin(level int) int {
	return l.framesPerBin[level]
}

// FramesPerTile returns the number of frames covered by one tile at level.
func (l Layout) FramesPerTile(level int) int {
	return l.framesPerBin[level] * l.binsPerTile
}

// TileCount returns how many tiles are needed to cover the duration at level.
func (l Layout) TileCount(level int) int {
	fpt := l.FramesPerTile(level)
	return (l.duration + fpt - 1) / fpt
}

// ValidTile reports whether tileIndex addresses a tile inside the duration.
func (l Layout) ValidTile(level, tileIndex int) bool {
	return l.ValidLevel(level) && tileIndex >= 0 && tileIndex < l.TileCount(level)
}

// Locate maps a frame to its tile and bin at level.
func (l Layout) Locate(frame, level int) (tileIndex, binIndex int) {
	fpb := l.framesPerBin[level]
	tileIndex = frame / (fpb * l.binsPerTile)
	binIndex = (frame / fpb) % l.binsPerTile
	return tileIndex, binIndex
}

// TileSpan returns the half-open frame range [start, end) covered by a tile,
// truncated at the duration.
func (l Layout) TileSpan(level, tileIndex int) (start, end int) {
	fpt := l.FramesPerTile(level)
	start = tileIndex * fpt
	end = min(start+fpt, l.duration)
	return start, end
}

// BinSpan returns the half-open frame range of one bin, truncated at the
// duration. Bins entirely past the duration return an empty range.
func (l Layout) BinSpan(level, tileIndex, binIndex int) (start, end int) {
	fpb := l.framesPerBin[level]
	start = tileIndex*l.FramesPerTile(level) + binIndex*fpb
	end = min(start+fpb, l.duration)
	if end < start {
		end = start
	}
	return start, end
}

// ValidBins returns how many leading bins of a tile carry data. Only the last
// tile of a level can be partially populated.
func (l Layout) ValidBins(level, tileIndex int) int {
	start, end := l.TileSpan(level, tileIndex)
	if end <= start {
		return 0
	}
	fpb := l.framesPerBin[level]
	return (end - start + fpb - 1) / fpb
}

// TileRange returns the first and last tile at level overlapping the
// half-open frame range [f0, f1). The range is clamped to the duration; an
// empty range yields the tile containing f0.
func (l Layout) TileRange(level, f0, f1 int) (first, last int) {
	f0 = clamp(f0, 0, l.duration-1)
	f1 = clamp(f1, f0+1, l.duration)
	fpt := l.FramesPerTile(level)
	return f0 / fpt, (f1 - 1) / fpt
}

// LevelForRatio returns the finest level whose bins hold at least ratio
// frames, capped at MaxLevel. This is ceil(log_b(ratio)) computed without
// floating point drift.
func (l Layout) LevelForRatio(ratio float64) int {
	if math.IsNaN(ratio) || ratio <= 1 {
		return 0
	}
	for level, fpb := range l.framesPerBin {
		if float64(fpb) >= ratio {
			return level
		}
	}
	return l.MaxLevel()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
