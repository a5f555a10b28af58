package tiles

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/pyramid"
)

// gateSource serves a mutable slice and can be blocked or made to fail.
type gateSource struct {
	mu        sync.Mutex
	data      []float64
	gate      chan struct{}
	err       error
	ignoreCtx bool
	calls     int
	started   chan struct{}
}

func newGateSource(data []float64) *gateSource {
	return &gateSource{data: data, started: make(chan struct{}, 1024)}
}

func (g *gateSource) ReadRange(ctx context.Context, start, end int) ([]float64, error) {
	g.mu.Lock()
	g.calls++
	gate, ignoreCtx := g.gate, g.ignoreCtx
	g.mu.Unlock()

	select {
	case g.started <- struct{}{}:
	default:
	}

	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return channel.SliceSource(g.data).ReadRange(ctx, start, end)
}

func (g *gateSource) block() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = make(chan struct{})
	return g.gate
}

func (g *gateSource) set(frame int, v float64) {
	g.mu.Lock()
	g.data[frame] = v
	g.mu.Unlock()
}

func (g *gateSource) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *gateSource) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func newTestStore(t *testing.T, layout pyramid.Layout, capacity int, src channel.Source, agg channel.Aggregator) *Store {
	t.Helper()
	reg := channel.NewRegistry()
	if err := reg.Register("labels", src, agg, agg.Cardinality()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	opts := DefaultOptions()
	opts.Capacity = capacity
	opts.Workers = 2
	s := NewStore(layout, reg, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustGet(t *testing.T, s *Store, level, tile int) Tile {
	t.Helper()
	got, err := s.GetTile("labels", level, tile)
	if err != nil {
		t.Fatalf("GetTile(%d, %d) error = %v", level, tile, err)
	}
	return got
}

func TestStore_SteadyStateMatchesRawAggregation(t *testing.T) {
	layout := pyramid.MustNew(37, 4, 2)
	data := ramp(37)
	s := newTestStore(t, layout, 1000, channel.SliceSource(data), channel.Mean())

	for level := 0; level <= layout.MaxLevel(); level++ {
		for tile := range layout.TileCount(level) {
			mustGet(t, s, level, tile)
		}
	}
	waitIdle(t, s)

	reducer := channel.Mean().NewReducer()
	for level := 0; level <= layout.MaxLevel(); level++ {
		for tile := range layout.TileCount(level) {
			got := mustGet(t, s, level, tile)
			if got.Status != StatusReady || got.Approximate {
				t.Fatalf("L%d T%d status = %v approximate = %v", level, tile, got.Status, got.Approximate)
			}
			if len(got.Bins) != layout.ValidBins(level, tile) {
				t.Fatalf("L%d T%d has %d bins, want %d", level, tile, len(got.Bins), layout.ValidBins(level, tile))
			}
			for bin, v := range got.Bins {
				start, end := layout.BinSpan(level, tile, bin)
				if want := reducer.Reduce(data[start:end]); v != want {
					t.Errorf("L%d T%d bin %d = %v, want %v", level, tile, bin, v, want)
				}
			}
		}
	}
}

func TestStore_GetTileIsIdempotent(t *testing.T) {
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, channel.SliceSource(ramp(40)), channel.Max())

	mustGet(t, s, 1, 2)
	waitIdle(t, s)

	first := mustGet(t, s, 1, 2)
	second := mustGet(t, s, 1, 2)
	if first.Generation != second.Generation || !slices.Equal(first.Bins, second.Bins) {
		t.Errorf("repeated GetTile() differ: %+v vs %+v", first, second)
	}
	if got := s.Scheduler().Stats(); got.Queued+got.Running != 0 {
		t.Errorf("ready tile scheduled work: %+v", got)
	}
}

func TestStore_MissReturnsCoarserApproximation(t *testing.T) {
	src := newGateSource(ramp(40))
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, src, channel.Mean())

	mustGet(t, s, 1, 0)
	waitIdle(t, s)

	gate := src.block()
	got := mustGet(t, s, 0, 1)
	if got.Status != StatusPending || !got.Approximate {
		t.Fatalf("status = %v approximate = %v, want pending approximation", got.Status, got.Approximate)
	}
	// Level 1 tile 0 holds [0.5 2.5 4.5 6.5]; frames 4..7 fall in its last two bins.
	if want := []float64{4.5, 4.5, 6.5, 6.5}; !slices.Equal(got.Bins, want) {
		t.Errorf("approximation = %v, want %v", got.Bins, want)
	}

	far := mustGet(t, s, 0, 9)
	for _, v := range far.Bins {
		if !math.IsNaN(v) {
			t.Fatalf("tile without coarser data = %v, want placeholder NaN", far.Bins)
		}
	}

	close(gate)
	waitIdle(t, s)
	if got := mustGet(t, s, 0, 1); !slices.Equal(got.Bins, []float64{4, 5, 6, 7}) {
		t.Errorf("computed bins = %v, want [4 5 6 7]", got.Bins)
	}
}

func TestStore_InvalidateMarksEveryLevelStale(t *testing.T) {
	const duration = 100000
	layout := pyramid.MustNew(duration, pyramid.DefaultBinsPerTile, 2)
	src := newGateSource(make([]float64, duration))
	s := newTestStore(t, layout, DefaultCapacity, src, channel.Max())

	for level := 0; level <= 5; level++ {
		mustGet(t, s, level, 0)
	}
	mustGet(t, s, 0, 1)
	waitIdle(t, s)

	gate := src.block()
	src.set(1005, 7)
	if err := s.Invalidate("labels", 1000, 1011); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	for level := 0; level <= 5; level++ {
		got := mustGet(t, s, level, 0)
		if got.Status != StatusStale {
			t.Fatalf("L%d status = %v, want stale", level, got.Status)
		}
		_, bin := layout.Locate(1005, level)
		if got.Bins[bin] != 0 {
			t.Errorf("L%d stale bin = %v, want prior value 0", level, got.Bins[bin])
		}
	}
	if got := mustGet(t, s, 0, 1); got.Status != StatusReady {
		t.Errorf("tile outside range status = %v, want ready", got.Status)
	}
	if st := s.Scheduler().Stats(); st.Queued+st.Running != 6 {
		t.Errorf("scheduled jobs = %+v, want 6", st)
	}

	close(gate)
	waitIdle(t, s)

	for level := 0; level <= 5; level++ {
		got := mustGet(t, s, level, 0)
		_, bin := layout.Locate(1005, level)
		if got.Status != StatusReady || got.Bins[bin] != 7 {
			t.Errorf("L%d after recompute: status %v bin %v, want ready 7", level, got.Status, got.Bins[bin])
		}
	}
}

func TestStore_InvalidateRejectsBadInput(t *testing.T) {
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, channel.SliceSource(ramp(40)), channel.Mean())

	tests := []struct {
		name    string
		channel string
		f0, f1  int
		want    error
	}{
		{"unknown channel", "nope", 0, 1, ErrUnknownChannel},
		{"empty", "labels", 5, 5, ErrInvalidRange},
		{"inverted", "labels", 6, 5, ErrInvalidRange},
		{"past end", "labels", 40, 50, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Invalidate(tt.channel, tt.f0, tt.f1); !errors.Is(err, tt.want) {
				t.Errorf("Invalidate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 2, channel.SliceSource(ramp(40)), channel.Mean())

	mustGet(t, s, 0, 0)
	mustGet(t, s, 0, 1)
	waitIdle(t, s)
	mustGet(t, s, 0, 0)
	mustGet(t, s, 0, 2)

	s.mu.Lock()
	_, kept0 := s.tiles[key(0)]
	_, kept1 := s.tiles[key(1)]
	s.mu.Unlock()
	if !kept0 || kept1 {
		t.Errorf("after eviction tile0 kept = %v, tile1 kept = %v; want true, false", kept0, kept1)
	}
	if got := s.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestStore_PinnedTilesAreNotEvicted(t *testing.T) {
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 2, channel.SliceSource(ramp(40)), channel.Mean())

	mustGet(t, s, 0, 0)
	mustGet(t, s, 0, 1)
	waitIdle(t, s)
	mustGet(t, s, 0, 0)

	vs := NewVisibleSet()
	vs.AddVisible(key(1))
	s.SetVisible(vs)
	mustGet(t, s, 0, 2)

	s.mu.Lock()
	_, kept0 := s.tiles[key(0)]
	_, kept1 := s.tiles[key(1)]
	s.mu.Unlock()
	if kept0 || !kept1 {
		t.Errorf("tile0 kept = %v, tile1 kept = %v; want false, true", kept0, kept1)
	}
	if got := s.Stats().Pinned; got != 1 {
		t.Errorf("Pinned = %d, want 1", got)
	}
}

func TestStore_FailedTileIsNotRetried(t *testing.T) {
	src := newGateSource(ramp(40))
	sourceErr := errors.New("disk on fire")
	src.fail(sourceErr)
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, src, channel.Mean())

	mustGet(t, s, 0, 3)
	waitIdle(t, s)

	got := mustGet(t, s, 0, 3)
	if got.Status != StatusError {
		t.Fatalf("status = %v, want error", got.Status)
	}
	var aggErr *AggregationError
	if !errors.As(got.Err, &aggErr) || aggErr.Key != key(3) || !errors.Is(got.Err, sourceErr) {
		t.Errorf("Err = %v, want AggregationError wrapping source error", got.Err)
	}

	failures := s.Failures()
	if len(failures) != 1 || !errors.Is(failures["labels"], sourceErr) {
		t.Errorf("Failures() = %v, want labels -> source error", failures)
	}

	calls := src.callCount()
	for range 5 {
		mustGet(t, s, 0, 3)
	}
	waitIdle(t, s)
	if src.callCount() != calls {
		t.Errorf("source called %d more times, want no retry", src.callCount()-calls)
	}

	src.fail(nil)
	if err := s.Invalidate("labels", 12, 13); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	mustGet(t, s, 0, 3)
	waitIdle(t, s)
	if got := mustGet(t, s, 0, 3); got.Status != StatusReady {
		t.Errorf("status after invalidate = %v, want ready", got.Status)
	}
	if failures := s.Failures(); len(failures) != 0 {
		t.Errorf("Failures() after recovery = %v, want none", failures)
	}
}

func TestStore_VisibleTouchRetriesFailedTile(t *testing.T) {
	src := newGateSource(ramp(40))
	src.fail(errors.New("flaky"))
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, src, channel.Mean())

	mustGet(t, s, 0, 4)
	waitIdle(t, s)
	src.fail(nil)

	vs := NewVisibleSet()
	vs.AddVisible(key(4))
	s.SetVisible(vs)
	waitIdle(t, s)

	if got := mustGet(t, s, 0, 4); got.Status != StatusReady {
		t.Errorf("status = %v, want ready after entering the visible set", got.Status)
	}
}

func TestStore_CancelledJobNeverWrites(t *testing.T) {
	src := newGateSource(ramp(40))
	src.ignoreCtx = true
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, src, channel.Mean())

	gate := src.block()
	mustGet(t, s, 0, 5)
	<-src.started

	cancelled := s.Scheduler().Cancel(func(Key) bool { return false })
	s.Discard(cancelled)
	close(gate)
	waitIdle(t, s)

	s.mu.Lock()
	e := s.tiles[key(5)]
	status, bins := e.status, e.bins
	s.mu.Unlock()
	if status != StatusPending || bins != nil {
		t.Errorf("cancelled tile status = %v bins = %v, want untouched pending", status, bins)
	}
}

func TestStore_InstallDropsOldGeneration(t *testing.T) {
	src := newGateSource(ramp(40))
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, src, channel.Mean())

	gate := src.block()
	before := mustGet(t, s, 0, 6)
	if err := s.Invalidate("labels", 24, 25); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	s.install(key(6), before.Generation, []float64{-1, -1, -1, -1}, nil)
	if got := mustGet(t, s, 0, 6); got.Status != StatusPending {
		t.Errorf("old generation was installed: %+v", got)
	}

	close(gate)
	waitIdle(t, s)
	if got := mustGet(t, s, 0, 6); !slices.Equal(got.Bins, []float64{24, 25, 26, 27}) {
		t.Errorf("bins = %v, want [24 25 26 27]", got.Bins)
	}
}

func TestStore_ContractViolations(t *testing.T) {
	layout := pyramid.MustNew(40, 4, 2)
	s := newTestStore(t, layout, 10, channel.SliceSource(ramp(40)), channel.Mean())

	tests := []struct {
		name        string
		channel     string
		level, tile int
		want        error
	}{
		{"unknown channel", "missing", 0, 0, ErrUnknownChannel},
		{"negative level", "labels", -1, 0, ErrInvalidLevel},
		{"level past max", "labels", layout.MaxLevel() + 1, 0, ErrInvalidLevel},
		{"tile past end", "labels", 0, 10, ErrInvalidTile},
		{"negative tile", "labels", 0, -1, ErrInvalidTile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.GetTile(tt.channel, tt.level, tt.tile); !errors.Is(err, tt.want) {
				t.Errorf("GetTile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_PrefetchAndStats(t *testing.T) {
	s := newTestStore(t, pyramid.MustNew(40, 4, 2), 10, channel.SliceSource(ramp(40)), channel.Mean())

	s.Prefetch(key(0), key(1), Key{Channel: "labels", Level: 0, Tile: 99})
	waitIdle(t, s)

	st := s.Stats()
	if st.Tiles != 2 || st.Ready != 2 {
		t.Errorf("Stats() = %+v, want 2 ready tiles", st)
	}
	if got := mustGet(t, s, 0, 1); got.Status != StatusReady {
		t.Errorf("prefetched tile status = %v", got.Status)
	}
}

func TestStore_FreezesRegistryOnFirstQuery(t *testing.T) {
	reg := channel.NewRegistry()
	if err := reg.Register("labels", channel.SliceSource(ramp(40)), channel.Mean(), channel.Numeric); err != nil {
		t.Fatal(err)
	}
	s := NewStore(pyramid.MustNew(40, 4, 2), reg, DefaultOptions())
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.GetTile("labels", 0, 0); err != nil {
		t.Fatal(err)
	}
	var cfgErr *channel.ConfigError
	err := reg.Register("late", channel.SliceSource(nil), channel.Mean(), channel.Numeric)
	if !errors.As(err, &cfgErr) {
		t.Errorf("Register() after first query error = %v, want ConfigError", err)
	}
}
