// Package tiles holds the multi-resolution tile pyramid for every channel and
// the background scheduler that fills it.
//
// A Store never blocks a query: it answers from cache, from a stale copy, or
// from a coarser-level approximation, and hands misses to its Scheduler.
// Completed aggregations are installed only when their generation still
// matches the tile's, so late results from cancelled or superseded jobs are
// dropped silently.
package tiles

import (
	"fmt"
)

// Key identifies one tile of the pyramid.
type Key struct {
	Channel string
	Level   int
	Tile    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/L%d/T%d", k.Channel, k.Level, k.Tile)
}

// Status is the lifecycle state of a tile.
type Status int

const (
	// StatusPending means no result has been installed for the current
	// generation yet.
	StatusPending Status = iota
	// StatusReady tiles hold bins aggregated from the current data.
	StatusReady
	// StatusStale tiles hold bins from before an invalidation.
	StatusStale
	// StatusError tiles failed to aggregate and are not retried automatically.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Tile is a snapshot of one tile as returned to the renderer.
//
// Bins holds one value per valid bin and must be treated as read-only; it is
// shared between snapshots of the same generation. Approximate is set when the
// values come from a coarser level or the placeholder rather than from this
// tile's own aggregation.
type Tile struct {
	Key         Key
	Status      Status
	Generation  uint64
	Bins        []float64
	Approximate bool
	Err         error
}

// Priority orders scheduler work. Lower values run first.
type Priority int

const (
	PriorityVisible Priority = iota
	PriorityNeighbor
	PriorityBackground
)

func (p Priority) String() string {
	switch p {
	case PriorityVisible:
		return "visible"
	case PriorityNeighbor:
		return "neighbor"
	default:
		return "background"
	}
}
