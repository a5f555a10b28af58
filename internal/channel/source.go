package channel

import (
	"context"
	"math"
)

// Source supplies raw per-frame values. ReadRange returns exactly end-start
// values for the half-open range [start, end), with NaN for frames that have
// no value. Implementations may be slow and must tolerate concurrent calls.
type Source interface {
	ReadRange(ctx context.Context, start, end int) ([]float64, error)
}

// SourceFunc adapts a single-frame lookup into a Source.
type SourceFunc func(frame int) (float64, error)

// ReadRange calls f once per frame, checking ctx between frames.
func (f SourceFunc) ReadRange(ctx context.Context, start, end int) ([]float64, error) {
	out := make([]float64, 0, max(end-start, 0))
	for frame := start; frame < end; frame++ {
		if frame%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v, err := f(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SliceSource serves values from memory. Frames past the slice read as NaN.
type SliceSource []float64

// ReadRange copies the requested window.
func (s SliceSource) ReadRange(_ context.Context, start, end int) ([]float64, error) {
	out := make([]float64, max(end-start, 0))
	for i := range out {
		f := start + i
		if f >= 0 && f < len(s) {
			out[i] = s[f]
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}
