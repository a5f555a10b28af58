package tiles

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/metrics"
)

// RunFunc computes the bins for a tile. It must honour ctx cancellation.
type RunFunc func(ctx context.Context, key Key) ([]float64, error)

// DoneFunc receives a finished computation. It is called without the
// scheduler lock held and never for cancelled jobs.
type DoneFunc func(key Key, gen uint64, bins []float64, err error)

// SchedulerStats is a point-in-time view of the job table.
type SchedulerStats struct {
	Queued  int
	Running int
}

type job struct {
	key   Key
	gen   uint64
	prio  Priority
	seq   uint64
	index int

	running  bool
	cancel   context.CancelFunc
	dropped  bool
	rerun    bool
	rerunGen uint64
}

// Scheduler runs tile computations on a fixed pool of workers.
//
// Jobs are deduplicated by Key so at most one computation per tile is in
// flight. Enqueueing a newer generation for a running job cancels it and
// queues a rerun once it returns.
type Scheduler struct {
	run     RunFunc
	done    DoneFunc
	metrics *metrics.Collector

	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobQueue
	jobs    map[Key]*job
	seq     uint64
	running int
	closed  bool
	idle    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewScheduler starts workers goroutines (at least one).
func NewScheduler(run RunFunc, done DoneFunc, workers int, m *metrics.Collector) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	s := &Scheduler{
		run:     run,
		done:    done,
		metrics: m,
		jobs:    make(map[Key]*job),
		idle:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
	}
	s.cond = sync.NewCond(&s.mu)
	close(s.idle)

	for range max(1, workers) {
		group.Go(s.worker)
	}
	return s
}

// Enqueue schedules key at generation gen. An existing job for the key is
// reused: a queued job adopts the newer generation and the higher priority, a
// running job is cancelled and rerun at the newer generation. It reports
// whether the job table changed.
func (s *Scheduler) Enqueue(key Key, gen uint64, prio Priority) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if j, ok := s.jobs[key]; ok {
		if j.running {
			if j.dropped {
				gen = max(gen, j.gen)
			} else if gen <= j.gen || (j.rerun && gen <= j.rerunGen) {
				return false
			}
			j.rerun = true
			j.rerunGen = gen
			j.dropped = false
			j.prio = min(j.prio, prio)
			j.cancel()
			return true
		}

		changed := false
		if gen > j.gen {
			j.gen = gen
			changed = true
		}
		if prio < j.prio {
			j.prio = prio
			heap.Fix(&s.queue, j.index)
			changed = true
		}
		return changed
	}

	s.push(&job{key: key, gen: gen, prio: prio})
	return true
}

// Cancel drops every queued or running job whose key fails keep and returns
// the affected keys. Running jobs are signalled through their context and
// their result is never delivered, even if the computation ignores the signal.
func (s *Scheduler) Cancel(keep func(Key) bool) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled []Key
	for key, j := range s.jobs {
		if keep(key) {
			continue
		}
		cancelled = append(cancelled, key)
		if j.running {
			j.dropped = true
			j.rerun = false
			j.cancel()
			continue
		}
		heap.Remove(&s.queue, j.index)
		delete(s.jobs, key)
	}
	s.updateIdle()
	s.record()
	return cancelled
}

// Reprioritize recomputes the priority of every queued job.
func (s *Scheduler) Reprioritize(prio func(Key) Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.queue {
		j.prio = prio(j.key)
	}
	heap.Init(&s.queue)
}

// Stats returns the queue depth and the number of running jobs.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{Queued: len(s.queue), Running: s.running}
}

// WaitIdle blocks until no job is queued or running, or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 && s.running == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels all work and waits for the workers to exit.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	for _, j := range s.jobs {
		if j.running {
			j.cancel()
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	return s.group.Wait()
}

func (s *Scheduler) worker() error {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return nil
		}

		j := heap.Pop(&s.queue).(*job)
		ctx, cancel := context.WithCancel(s.ctx)
		j.running = true
		j.cancel = cancel
		key, gen := j.key, j.gen
		s.running++
		s.record()
		s.mu.Unlock()

		start := time.Now()
		bins, err := s.run(ctx, key)
		interrupted := ctx.Err() != nil
		cancel()

		switch {
		case interrupted || errors.Is(err, context.Canceled):
			s.metrics.JobOutcome(metrics.OutcomeCancelled)
		default:
			s.metrics.ObserveAggregation(key.Channel, time.Since(start))
			if err != nil {
				logger.Warn("Tile aggregation failed", "tile", key.String(), "error", err)
			}
			s.done(key, gen, bins, err)
		}

		s.finish(j)
	}
}

// finish retires a job after its run returned, requeueing it when a newer
// generation arrived meanwhile.
func (s *Scheduler) finish(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	j.running = false
	j.cancel = nil

	switch {
	case j.rerun && !s.closed:
		j.rerun = false
		j.gen = j.rerunGen
		j.index = -1
		s.seq++
		j.seq = s.seq
		heap.Push(&s.queue, j)
		s.cond.Signal()
	default:
		delete(s.jobs, j.key)
	}
	s.updateIdle()
	s.record()
}

func (s *Scheduler) push(j *job) {
	s.seq++
	j.seq = s.seq
	s.jobs[j.key] = j
	heap.Push(&s.queue, j)
	s.updateIdle()
	s.record()
	s.cond.Signal()
}

// updateIdle keeps s.idle open while work exists and closes it once the
// scheduler drains. Callers hold s.mu.
func (s *Scheduler) updateIdle() {
	busy := len(s.queue) > 0 || s.running > 0
	select {
	case <-s.idle:
		if busy {
			s.idle = make(chan struct{})
		}
	default:
		if !busy {
			close(s.idle)
		}
	}
}

func (s *Scheduler) record() {
	s.metrics.SetQueue(len(s.queue), s.running)
}

// jobQueue is a heap ordered by priority, then submission order.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
