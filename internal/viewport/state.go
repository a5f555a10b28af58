// Package viewport models the visible frame range, playhead and selection of
// a timeline, and projects frames onto pixel columns.
//
// State transitions are pure: every operation returns a new State or a
// RangeError and never modifies its receiver. Model wraps a State and
// notifies listeners of each successful change.
package viewport

import (
	"fmt"
	"math"
)

// RangeError rejects a viewport operation whose arguments are invalid or out
// of bounds. The previous state is kept.
type RangeError struct {
	Op     string
	Lo, Hi float64
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("viewport %s(%g, %g): %s", e.Op, e.Lo, e.Hi, e.Reason)
}

// Selection is an inclusive frame range [Start, End].
type Selection struct {
	Start int
	End   int
}

// Len returns the number of selected frames.
func (s Selection) Len() int { return s.End - s.Start + 1 }

// State is one immutable viewport configuration.
//
// The visible range [Start, End) is kept in fractional frames so that repeated
// anchored zooms do not drift; 0 <= Start < End <= Duration and End-Start >= 1.
type State struct {
	Duration     int
	Start        float64
	End          float64
	Playhead     int
	Selection    Selection
	HasSelection bool
}

// NewState shows the whole duration with the playhead on frame 0.
func NewState(duration int) (State, error) {
	if duration < 1 {
		return State{}, &RangeError{Op: "new", Hi: float64(duration), Reason: "duration must be positive"}
	}
	return State{Duration: duration, Start: 0, End: float64(duration)}, nil
}

// Width returns the visible width in frames.
func (s State) Width() float64 { return s.End - s.Start }

// ZoomFactor returns how many times narrower the view is than the duration.
func (s State) ZoomFactor() float64 { return float64(s.Duration) / s.Width() }

// PanOffset returns the first visible frame position.
func (s State) PanOffset() float64 { return s.Start }

// VisibleFrames returns the integer frame range [f0, f1) touched by the view.
func (s State) VisibleFrames() (f0, f1 int) {
	f0 = int(math.Floor(s.Start))
	f1 = min(int(math.Ceil(s.End)), s.Duration)
	return f0, max(f1, f0+1)
}

// Contains reports whether frame lies in the visible range.
func (s State) Contains(frame int) bool {
	f := float64(frame)
	return f >= math.Floor(s.Start) && f < s.End
}

// Zoom divides the visible width by factor, keeping anchor at the same
// relative position on screen. The width is clamped to [1, Duration].
func (s State) Zoom(factor, anchor float64) (State, error) {
	if !finite(factor) || factor <= 0 {
		return s, &RangeError{Op: "zoom", Lo: factor, Hi: anchor, Reason: "factor must be positive"}
	}
	if !finite(anchor) || anchor < 0 || anchor > float64(s.Duration) {
		return s, &RangeError{Op: "zoom", Lo: factor, Hi: anchor, Reason: "anchor outside timeline"}
	}

	w := s.Width()
	nw := clampF(w/factor, 1, float64(s.Duration))
	frac := (anchor - s.Start) / w

	next := s
	next.Start = anchor - frac*nw
	next.End = next.Start + nw
	return next.fit(), nil
}

// Pan shifts the visible range by delta frames, stopping at either end.
func (s State) Pan(delta float64) (State, error) {
	if !finite(delta) {
		return s, &RangeError{Op: "pan", Lo: delta, Reason: "delta is not finite"}
	}
	next := s
	next.Start += delta
	next.End += delta
	return next.fit(), nil
}

// SetRange shows [f0, f1). Bounds are clamped to the timeline; a range that
// is inverted or lies entirely outside it is rejected.
func (s State) SetRange(f0, f1 float64) (State, error) {
	switch {
	case !finite(f0) || !finite(f1):
		return s, &RangeError{Op: "set_range", Lo: f0, Hi: f1, Reason: "bounds are not finite"}
	case f0 > f1:
		return s, &RangeError{Op: "set_range", Lo: f0, Hi: f1, Reason: "start after end"}
	case f1 <= 0 || f0 >= float64(s.Duration):
		return s, &RangeError{Op: "set_range", Lo: f0, Hi: f1, Reason: "range outside timeline"}
	}

	next := s
	next.Start = max(f0, 0)
	next.End = min(f1, float64(s.Duration))
	if next.Width() < 1 {
		next.End = next.Start + 1
	}
	return next.fit(), nil
}

// Reset shows the whole timeline.
func (s State) Reset() State {
	next := s
	next.Start = 0
	next.End = float64(s.Duration)
	return next
}

// SeekToFrame moves the playhead, clamped to the timeline. When the frame is
// off screen the view re-centers on it with the same width.
func (s State) SeekToFrame(frame int) State {
	next := s
	next.Playhead = clampI(frame, 0, s.Duration-1)
	if next.Contains(next.Playhead) {
		return next
	}
	w := s.Width()
	next.Start = float64(next.Playhead) + 0.5 - w/2
	next.End = next.Start + w
	return next.fit()
}

// SetSelection selects the inclusive range [s0, s1]. Selections live in
// frame space and are unaffected by later pans and zooms.
func (s State) SetSelection(s0, s1 int) (State, error) {
	switch {
	case s0 > s1:
		return s, &RangeError{Op: "set_selection", Lo: float64(s0), Hi: float64(s1), Reason: "start after end"}
	case s0 < 0 || s1 >= s.Duration:
		return s, &RangeError{Op: "set_selection", Lo: float64(s0), Hi: float64(s1), Reason: "outside timeline"}
	}
	next := s
	next.Selection = Selection{Start: s0, End: s1}
	next.HasSelection = true
	return next, nil
}

// ClearSelection removes the selection.
func (s State) ClearSelection() State {
	next := s
	next.Selection = Selection{}
	next.HasSelection = false
	return next
}

// Validate checks every invariant of s, for states restored from storage.
func (s State) Validate() error {
	switch {
	case s.Duration < 1:
		return &RangeError{Op: "validate", Hi: float64(s.Duration), Reason: "duration must be positive"}
	case !finite(s.Start) || !finite(s.End) || s.Start < 0 || s.End > float64(s.Duration) || s.Width() < 1:
		return &RangeError{Op: "validate", Lo: s.Start, Hi: s.End, Reason: "visible range outside timeline"}
	case s.Playhead < 0 || s.Playhead >= s.Duration:
		return &RangeError{Op: "validate", Lo: float64(s.Playhead), Reason: "playhead outside timeline"}
	case s.HasSelection && (s.Selection.Start > s.Selection.End || s.Selection.Start < 0 || s.Selection.End >= s.Duration):
		return &RangeError{Op: "validate", Lo: float64(s.Selection.Start), Hi: float64(s.Selection.End), Reason: "selection outside timeline"}
	}
	return nil
}

// fit slides the range back inside [0, Duration] keeping its width.
func (s State) fit() State {
	d := float64(s.Duration)
	w := clampF(s.Width(), 1, d)
	s.Start = clampF(s.Start, 0, d-w)
	s.End = s.Start + w
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func clampI(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
