package tiles

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/metrics"
	"github.com/j-veylop/framescope/internal/pyramid"
)

// DefaultCapacity is the number of tiles kept per (channel, level).
const DefaultCapacity = 64

// Options configures a Store.
type Options struct {
	// Capacity bounds cached tiles per (channel, level). Zero means
	// DefaultCapacity.
	Capacity int
	// Workers is the size of the aggregation pool. Zero means one worker.
	Workers int
	// Placeholder fills bins that have never been computed at any level.
	// Use math.NaN() to render them as gaps.
	Placeholder float64
	// Notify is called after a result is installed or a tile fails.
	Notify func(Key)
	// Metrics may be nil.
	Metrics *metrics.Collector
}

// DefaultOptions returns a NaN placeholder and default capacity.
func DefaultOptions() Options {
	return Options{
		Capacity:    DefaultCapacity,
		Workers:     1,
		Placeholder: math.NaN(),
	}
}

// Stats summarizes the tile table.
type Stats struct {
	Tiles     int
	Pending   int
	Ready     int
	Stale     int
	Failed    int
	Pinned    int
	Evictions uint64
	Scheduler SchedulerStats
}

type entry struct {
	key    Key
	status Status
	gen    uint64
	bins   []float64
	err    error
	elem   *list.Element
}

type group struct {
	channel string
	level   int
}

// Store is the tile pyramid of every registered channel.
type Store struct {
	layout   pyramid.Layout
	registry *channel.Registry
	opts     Options
	sched    *Scheduler
	freeze   sync.Once

	mu        sync.Mutex
	tiles     map[Key]*entry
	lru       map[group]*list.List
	visible   *VisibleSet
	nextGen   uint64
	evictions uint64
}

// NewStore creates a store over layout and starts its scheduler. The registry
// is frozen on the first query.
func NewStore(layout pyramid.Layout, registry *channel.Registry, opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	s := &Store{
		layout:   layout,
		registry: registry,
		opts:     opts,
		tiles:    make(map[Key]*entry),
		lru:      make(map[group]*list.List),
	}
	s.sched = NewScheduler(s.compute, s.install, opts.Workers, opts.Metrics)
	return s
}

// Layout returns the pyramid geometry.
func (s *Store) Layout() pyramid.Layout { return s.layout }

// Scheduler returns the scheduler filling this store.
func (s *Store) Scheduler() *Scheduler { return s.sched }

// Close stops the scheduler.
func (s *Store) Close() error { return s.sched.Close() }

// GetTile returns the current state of a tile without blocking.
//
// Ready tiles are returned as is. Stale tiles return their previous bins,
// and tiles without data return an approximation from the nearest coarser
// level that has data (or the placeholder); both schedule a recomputation.
// Failed tiles return their error marker and are not rescheduled. Only an
// unknown channel or an out-of-range level or tile returns an error.
func (s *Store) GetTile(channelID string, level, tileIndex int) (Tile, error) {
	key := Key{Channel: channelID, Level: level, Tile: tileIndex}
	if err := s.validate(key); err != nil {
		return Tile{}, err
	}

	s.mu.Lock()
	e, ok := s.tiles[key]
	if !ok {
		e = s.insert(key, true)
	} else {
		s.lru[group{key.Channel, key.Level}].MoveToFront(e.elem)
	}

	tile := Tile{Key: key, Status: e.status, Generation: e.gen, Err: e.err}
	schedule := false
	switch e.status {
	case StatusReady:
		tile.Bins = e.bins
	case StatusStale:
		tile.Bins = e.bins
		schedule = true
	case StatusPending:
		tile.Bins = s.approximate(key)
		tile.Approximate = true
		schedule = true
	case StatusError:
		tile.Bins = s.placeholder(key)
		tile.Approximate = true
	}
	prio := s.visible.Priority(key)
	s.mu.Unlock()

	if schedule {
		s.sched.Enqueue(key, tile.Generation, prio)
	}
	s.opts.Metrics.TileRequest(channelID, requestResult(ok, tile.Status))
	return tile, nil
}

// Invalidate marks every cached tile overlapping the half-open frame range
// [f0, f1) as stale at every level. Nothing is evicted or recomputed until the
// tile is queried again. Failed tiles become pending so the next query
// retries them.
func (s *Store) Invalidate(channelID string, f0, f1 int) error {
	if _, ok := s.registry.Lookup(channelID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channelID)
	}
	if f0 >= f1 || f1 <= 0 || f0 >= s.layout.Duration() {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidRange, f0, f1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for level := 0; level <= s.layout.MaxLevel(); level++ {
		first, last := s.layout.TileRange(level, f0, f1)
		for t := first; t <= last; t++ {
			e, ok := s.tiles[Key{Channel: channelID, Level: level, Tile: t}]
			if !ok {
				continue
			}
			switch e.status {
			case StatusReady:
				e.status = StatusStale
			case StatusError:
				e.status = StatusPending
				e.err = nil
			}
			e.gen = s.bumpGen()
			marked++
		}
	}
	logger.Debug("Invalidated tiles", "channel", channelID, "from", f0, "to", f1, "tiles", marked)
	return nil
}

// Prefetch creates and schedules the given tiles at the priority implied by
// the current visible set, so neighbours run at PriorityNeighbor. Unlike
// GetTile it does not refresh LRU recency and never retries failed tiles.
// Invalid keys are skipped.
func (s *Store) Prefetch(keys ...Key) {
	type pending struct {
		key  Key
		gen  uint64
		prio Priority
	}
	var work []pending

	s.mu.Lock()
	for _, key := range keys {
		if s.validate(key) != nil {
			continue
		}
		e, ok := s.tiles[key]
		if !ok {
			e = s.insert(key, false)
		}
		if e.status == StatusPending || e.status == StatusStale {
			work = append(work, pending{key, e.gen, s.visible.Priority(key)})
		}
	}
	s.mu.Unlock()

	for _, w := range work {
		s.sched.Enqueue(w.key, w.gen, w.prio)
	}
}

// SetVisible replaces the pinned set. Pins released by the change become
// evictable, and failed tiles that newly enter the visible set are retried.
func (s *Store) SetVisible(vs *VisibleSet) {
	type retry struct {
		key Key
		gen uint64
	}
	var retries []retry

	s.mu.Lock()
	old := s.visible
	s.visible = vs

	for _, key := range vs.Visible() {
		if old.IsVisible(key) {
			continue
		}
		e, ok := s.tiles[key]
		if !ok || e.status != StatusError {
			continue
		}
		e.status = StatusPending
		e.err = nil
		e.gen = s.bumpGen()
		retries = append(retries, retry{key, e.gen})
	}

	released := make(map[group]struct{})
	for _, key := range old.Visible() {
		if !vs.IsVisible(key) {
			released[group{key.Channel, key.Level}] = struct{}{}
		}
	}
	for g := range released {
		s.trim(g)
	}
	s.mu.Unlock()

	for _, r := range retries {
		s.sched.Enqueue(r.key, r.gen, PriorityVisible)
	}
}

// Discard advances the generation of unfinished tiles so that any result
// still in flight for them is dropped on arrival.
func (s *Store) Discard(keys []Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		e, ok := s.tiles[key]
		if !ok {
			continue
		}
		if e.status == StatusPending || e.status == StatusStale {
			e.gen = s.bumpGen()
		}
	}
}

// Stats returns tile counts by status.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{Tiles: len(s.tiles), Evictions: s.evictions}
	for key, e := range s.tiles {
		switch e.status {
		case StatusPending:
			st.Pending++
		case StatusReady:
			st.Ready++
		case StatusStale:
			st.Stale++
		case StatusError:
			st.Failed++
		}
		if s.visible.IsVisible(key) {
			st.Pinned++
		}
	}
	s.mu.Unlock()

	st.Scheduler = s.sched.Stats()
	return st
}

// Failures returns, per channel, the error of its lowest-keyed failed tile.
// Channels without failed tiles are absent.
func (s *Store) Failures() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]error)
	first := make(map[string]Key)
	for key, e := range s.tiles {
		if e.status != StatusError {
			continue
		}
		if k, ok := first[key.Channel]; ok && compareKeys(k, key) <= 0 {
			continue
		}
		first[key.Channel] = key
		out[key.Channel] = e.err
	}
	return out
}

// WaitIdle blocks until the scheduler has drained or ctx is done.
func (s *Store) WaitIdle(ctx context.Context) error {
	return s.sched.WaitIdle(ctx)
}

func (s *Store) validate(key Key) error {
	if _, ok := s.registry.Lookup(key.Channel); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, key.Channel)
	}
	if !s.layout.ValidLevel(key.Level) {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidLevel, key.Level, s.layout.MaxLevel())
	}
	if !s.layout.ValidTile(key.Level, key.Tile) {
		return fmt.Errorf("%w: %d at level %d (count %d)",
			ErrInvalidTile, key.Tile, key.Level, s.layout.TileCount(key.Level))
	}
	s.freeze.Do(s.registry.Freeze)
	return nil
}

// compute is the scheduler's RunFunc.
func (s *Store) compute(ctx context.Context, key Key) ([]float64, error) {
	ch, ok := s.registry.Lookup(key.Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, key.Channel)
	}
	bins, err := Aggregate(ctx, s.layout, ch, key.Level, key.Tile)
	if err != nil && ctx.Err() == nil {
		return nil, &AggregationError{Key: key, Err: err}
	}
	return bins, err
}

// install is the scheduler's DoneFunc. Results whose generation no longer
// matches the tile are dropped.
func (s *Store) install(key Key, gen uint64, bins []float64, err error) {
	s.mu.Lock()
	e, ok := s.tiles[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		s.opts.Metrics.JobOutcome(metrics.OutcomeDiscarded)
		return
	}

	if err != nil {
		e.status = StatusError
		e.err = err
		e.bins = nil
	} else {
		e.status = StatusReady
		e.err = nil
		e.bins = bins
	}
	s.trim(group{key.Channel, key.Level})
	s.mu.Unlock()

	if err != nil {
		s.opts.Metrics.JobOutcome(metrics.OutcomeFailed)
	} else {
		s.opts.Metrics.JobOutcome(metrics.OutcomeInstalled)
	}
	if s.opts.Notify != nil {
		s.opts.Notify(key)
	}
}

// insert adds a pending entry. Recent entries go to the front of their LRU
// list; prefetched ones go to the back. Callers hold s.mu.
func (s *Store) insert(key Key, recent bool) *entry {
	g := group{key.Channel, key.Level}
	l, ok := s.lru[g]
	if !ok {
		l = list.New()
		s.lru[g] = l
	}

	e := &entry{key: key, status: StatusPending, gen: s.bumpGen()}
	if recent {
		e.elem = l.PushFront(e)
	} else {
		e.elem = l.PushBack(e)
	}
	s.tiles[key] = e
	s.trim(g)
	return e
}

// trim evicts least recently used ready, unpinned tiles until the group fits
// its capacity or nothing else is evictable. Callers hold s.mu.
func (s *Store) trim(g group) {
	l := s.lru[g]
	if l == nil {
		return
	}
	for l.Len() > s.opts.Capacity {
		victim := s.victim(l)
		if victim == nil {
			return
		}
		l.Remove(victim.elem)
		delete(s.tiles, victim.key)
		s.evictions++
		s.opts.Metrics.Eviction(victim.key.Channel)
		logger.Debug("Evicted tile", "tile", victim.key.String())
	}
}

func (s *Store) victim(l *list.List) *entry {
	for el := l.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.status == StatusReady && !s.visible.IsVisible(e.key) {
			return e
		}
	}
	return nil
}

// approximate fills a tile from the nearest coarser level holding data.
// Coarser tiles cover an aligned superset of frames, so a single ancestor tile
// contains the whole span. Callers hold s.mu.
func (s *Store) approximate(key Key) []float64 {
	out := s.placeholder(key)
	start, _ := s.layout.TileSpan(key.Level, key.Tile)
	fpb := s.layout.FramesPerBin(key.Level)

	for level := key.Level + 1; level <= s.layout.MaxLevel(); level++ {
		ancestor, _ := s.layout.Locate(start, level)
		e, ok := s.tiles[Key{Channel: key.Channel, Level: level, Tile: ancestor}]
		if !ok || (e.status != StatusReady && e.status != StatusStale) {
			continue
		}
		for i := range out {
			_, bin := s.layout.Locate(start+i*fpb, level)
			if bin < len(e.bins) {
				out[i] = e.bins[bin]
			}
		}
		break
	}
	return out
}

func (s *Store) placeholder(key Key) []float64 {
	out := make([]float64, s.layout.ValidBins(key.Level, key.Tile))
	for i := range out {
		out[i] = s.opts.Placeholder
	}
	return out
}

func (s *Store) bumpGen() uint64 {
	s.nextGen++
	return s.nextGen
}

func requestResult(cached bool, st Status) string {
	if !cached {
		return metrics.ResultMiss
	}
	switch st {
	case StatusReady:
		return metrics.ResultHit
	case StatusStale:
		return metrics.ResultStale
	case StatusError:
		return metrics.ResultError
	default:
		return metrics.ResultPending
	}
}
