// Package metrics exposes timeline engine counters through Prometheus.
//
// Every Collector owns its registry so several engines (and tests) can live in
// one process. All recording methods are safe on a nil *Collector, which lets
// engine components treat metrics as optional.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "framescope"

// Tile request results.
const (
	ResultHit     = "hit"
	ResultStale   = "stale"
	ResultPending = "pending"
	ResultMiss    = "miss"
	ResultError   = "error"
)

// Job outcomes.
const (
	OutcomeInstalled = "installed"
	OutcomeDiscarded = "discarded"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Collector groups the engine metrics.
type Collector struct {
	registry     *prometheus.Registry
	tileRequests *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	queued       prometheus.Gauge
	running      prometheus.Gauge
	aggregation  *prometheus.HistogramVec
}

// New creates a collector registered on a fresh registry, together with the
// standard Go runtime collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Tile queries by channel and cache result.",
		}, []string{"channel", "result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_evictions_total",
			Help:      "Tiles evicted under LRU pressure.",
		}, []string{"channel"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_jobs_total",
			Help:      "Finished aggregation jobs by outcome.",
		}, []string{"outcome"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregation_jobs_queued",
			Help:      "Jobs waiting for a worker.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregation_jobs_running",
			Help:      "Jobs currently aggregating.",
		}),
		aggregation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent aggregating one tile.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"channel"}),
	}

	c.registry.MustRegister(
		c.tileRequests,
		c.evictions,
		c.jobs,
		c.queued,
		c.running,
		c.aggregation,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// TileRequest counts one tile query.
func (c *Collector) TileRequest(channel, result string) {
	if c == nil {
		return
	}
	c.tileRequests.WithLabelValues(channel, result).Inc()
}

// Eviction counts one evicted tile.
func (c *Collector) Eviction(channel string) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(channel).Inc()
}

// JobOutcome counts one finished job.
func (c *Collector) JobOutcome(outcome string) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(outcome).Inc()
}

// SetQueue records the scheduler's queue depth and running job count.
func (c *Collector) SetQueue(queued, running int) {
	if c == nil {
		return
	}
	c.queued.Set(float64(queued))
	c.running.Set(float64(running))
}

// ObserveAggregation records how long one tile took to aggregate.
func (c *Collector) ObserveAggregation(channel string, d time.Duration) {
	if c == nil {
		return
	}
	c.aggregation.WithLabelValues(channel).Observe(d.Seconds())
}

// Totals sums every counter family by metric name, dropping labels.
func (c *Collector) Totals() map[string]float64 {
	totals := make(map[string]float64)
	if c == nil {
		return totals
	}
	families, err := c.registry.Gather()
	if err != nil {
		return totals
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if ctr := m.GetCounter(); ctr != nil {
				totals[mf.GetName()] += ctr.GetValue()
			}
		}
	}
	return totals
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
