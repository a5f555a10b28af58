package tiles

import (
	"context"
	"fmt"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/pyramid"
)

const (
	// cancelCheckBins is how many bins are aggregated between two
	// cancellation checks.
	cancelCheckBins = 256
	// maxChunkFrames bounds a single ReadRange call at coarse levels.
	maxChunkFrames = 1 << 16
)

// Aggregate computes the bins of one tile from the channel's raw source.
//
// The source is read in chunks of at most cancelCheckBins bins and ctx is
// checked before every chunk. On cancellation or failure nothing is returned,
// so callers never observe a partially filled tile.
func Aggregate(ctx context.Context, layout pyramid.Layout, ch channel.Channel, level, tileIndex int) ([]float64, error) {
	n := layout.ValidBins(level, tileIndex)
	if n == 0 {
		return nil, fmt.Errorf("%w: %d at level %d", ErrInvalidTile, tileIndex, level)
	}

	fpb := layout.FramesPerBin(level)
	start, end := layout.TileSpan(level, tileIndex)
	chunkBins := max(1, min(cancelCheckBins, maxChunkFrames/fpb))

	reducer := ch.Aggregator.NewReducer()
	out := make([]float64, n)

	for b := 0; b < n; b += chunkBins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hi := min(b+chunkBins, n)
		f0 := start + b*fpb
		f1 := min(start+hi*fpb, end)

		raw, err := ch.Source.ReadRange(ctx, f0, f1)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if len(raw) < f1-f0 {
			return nil, fmt.Errorf("%w: frames [%d,%d) got %d", errShortRead, f0, f1, len(raw))
		}

		for i := b; i < hi; i++ {
			lo := (i - b) * fpb
			up := min(lo+fpb, f1-f0)
			out[i] = reducer.Reduce(raw[lo:up])
		}
	}
	return out, nil
}
