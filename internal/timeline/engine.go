// Package timeline wires the channel registry, tile store, scheduler and
// viewport into the engine consumed by the renderer.
package timeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/metrics"
	"github.com/j-veylop/framescope/internal/pyramid"
	"github.com/j-veylop/framescope/internal/tiles"
	"github.com/j-veylop/framescope/internal/viewport"
)

// Config holds the engine tuning knobs. Zero values select defaults.
type Config struct {
	BinsPerTile int
	Branching   int
	Capacity    int
	Workers     int
	Placeholder float64
	Metrics     *metrics.Collector
}

// DefaultConfig returns the default pyramid geometry with a NaN placeholder.
func DefaultConfig() Config {
	return Config{
		BinsPerTile: pyramid.DefaultBinsPerTile,
		Branching:   pyramid.DefaultBranching,
		Capacity:    tiles.DefaultCapacity,
		Workers:     1,
		Placeholder: math.NaN(),
	}
}

// Column is what one pixel column of a channel strip shows.
type Column struct {
	// Frame is the first frame drawn in the column.
	Frame       int
	Value       float64
	Status      tiles.Status
	Approximate bool
}

// Engine answers render queries for every registered channel and keeps the
// scheduler focused on what is on screen.
type Engine struct {
	layout   pyramid.Layout
	registry *channel.Registry
	store    *tiles.Store
	model    *viewport.Model
	updates  chan struct{}

	mu sync.Mutex
	px int
}

// New builds an engine over duration frames. Channels must already be
// registered; the registry is frozen by the first query.
func New(duration int, registry *channel.Registry, cfg Config) (*Engine, error) {
	if cfg.BinsPerTile == 0 {
		cfg.BinsPerTile = pyramid.DefaultBinsPerTile
	}
	if cfg.Branching == 0 {
		cfg.Branching = pyramid.DefaultBranching
	}

	layout, err := pyramid.New(duration, cfg.BinsPerTile, cfg.Branching)
	if err != nil {
		return nil, err
	}
	model, err := viewport.NewModel(duration)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		layout:   layout,
		registry: registry,
		model:    model,
		updates:  make(chan struct{}, 1),
	}
	e.store = tiles.NewStore(layout, registry, tiles.Options{
		Capacity:    cfg.Capacity,
		Workers:     cfg.Workers,
		Placeholder: cfg.Placeholder,
		Notify:      func(tiles.Key) { e.notify() },
		Metrics:     cfg.Metrics,
	})
	model.OnChange(e.onViewportChange)
	return e, nil
}

func (e *Engine) Layout() pyramid.Layout { return e.layout }

func (e *Engine) Registry() *channel.Registry { return e.registry }

func (e *Engine) Store() *tiles.Store { return e.store }

// Viewport returns the model driven by user input.
func (e *Engine) Viewport() *viewport.Model { return e.model }

// Updates fires, coalesced, whenever a tile is installed or fails.
func (e *Engine) Updates() <-chan struct{} { return e.updates }

// SetWidth sets the strip width in pixel columns and refreshes the visible
// set.
func (e *Engine) SetWidth(px int) error {
	if px < 1 {
		return fmt.Errorf("strip width %d: must be at least one column", px)
	}
	e.mu.Lock()
	changed := e.px != px
	e.px = px
	e.mu.Unlock()

	if changed {
		e.refresh()
	}
	return nil
}

// Projection returns the projection of the current viewport.
func (e *Engine) Projection() (viewport.Projection, error) {
	e.mu.Lock()
	px := e.px
	e.mu.Unlock()
	return viewport.NewProjection(e.layout, e.model.State(), max(px, 1))
}

// Level returns the pyramid level for the current view, or viewport.PerFrame.
func (e *Engine) Level() int {
	p, err := e.Projection()
	if err != nil {
		return e.layout.MaxLevel()
	}
	return p.Level()
}

// Columns returns one value per pixel column for channelID. It never blocks:
// columns whose tiles are not ready carry stale or approximate values.
func (e *Engine) Columns(channelID string) ([]Column, error) {
	p, err := e.Projection()
	if err != nil {
		return nil, err
	}

	level := p.Level()
	tileLevel := max(level, 0)
	cache := make(map[int]tiles.Tile)
	cols := make([]Column, p.Pixels())

	for x := range cols {
		f0, f1 := p.ColumnSpan(x)
		frame := f0
		if level != viewport.PerFrame {
			frame = f0 + (f1-f0-1)/2
		}

		ti, bin := e.layout.Locate(frame, tileLevel)
		tile, ok := cache[ti]
		if !ok {
			tile, err = e.store.GetTile(channelID, tileLevel, ti)
			if err != nil {
				return nil, err
			}
			cache[ti] = tile
		}

		value := math.NaN()
		if bin < len(tile.Bins) {
			value = tile.Bins[bin]
		}
		cols[x] = Column{
			Frame:       f0,
			Value:       value,
			Status:      tile.Status,
			Approximate: tile.Approximate,
		}
	}
	return cols, nil
}

// Invalidate marks [f0, f1) of channelID stale and asks the renderer to
// re-query.
func (e *Engine) Invalidate(channelID string, f0, f1 int) error {
	if err := e.store.Invalidate(channelID, f0, f1); err != nil {
		return err
	}
	e.notify()
	return nil
}

// Stats returns tile and scheduler counters.
func (e *Engine) Stats() tiles.Stats { return e.store.Stats() }

// Failures returns the current aggregation error of every failing channel.
func (e *Engine) Failures() map[string]error { return e.store.Failures() }

// WaitIdle blocks until no aggregation is queued or running.
func (e *Engine) WaitIdle(ctx context.Context) error { return e.store.WaitIdle(ctx) }

// Close stops background aggregation.
func (e *Engine) Close() error { return e.store.Close() }

func (e *Engine) onViewportChange(c viewport.Change) {
	logger.Debug("Viewport changed",
		"op", c.Op,
		"start", c.New.Start,
		"end", c.New.End,
		"playhead", c.New.Playhead,
	)
	e.refresh()
}

// refresh recomputes the visible and neighbour tiles of every channel, pins
// them, drops jobs that left both sets and starts work on the new ones.
func (e *Engine) refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.px < 1 {
		return
	}
	p, err := viewport.NewProjection(e.layout, e.model.State(), e.px)
	if err != nil {
		logger.Error("Failed to project viewport", "error", err)
		return
	}

	level := max(p.Level(), 0)
	visibleTiles := p.VisibleTiles(level)
	neighborTiles := p.NeighborTiles(level)

	vs := tiles.NewVisibleSet()
	for _, id := range e.registry.IDs() {
		for _, t := range visibleTiles {
			vs.AddVisible(tiles.Key{Channel: id, Level: level, Tile: t})
		}
		for _, t := range neighborTiles {
			vs.AddNeighbor(tiles.Key{Channel: id, Level: level, Tile: t})
		}
	}

	sched := e.store.Scheduler()
	e.store.SetVisible(vs)
	sched.Reprioritize(vs.Priority)
	if cancelled := sched.Cancel(vs.Keep); len(cancelled) > 0 {
		e.store.Discard(cancelled)
		logger.Debug("Cancelled off-screen jobs", "count", len(cancelled))
	}
	e.store.Prefetch(vs.Visible()...)
	e.store.Prefetch(vs.Neighbors()...)
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
