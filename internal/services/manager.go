// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/config"
	"github.com/j-veylop/framescope/internal/db"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/metrics"
	"github.com/j-veylop/framescope/internal/models"
	"github.com/j-veylop/framescope/internal/services/annotations"
	"github.com/j-veylop/framescope/internal/tiles"
	"github.com/j-veylop/framescope/internal/timeline"
	"github.com/j-veylop/framescope/internal/viewport"
)

type (
	// TilesUpdatedEvent is emitted when aggregated tiles were installed or
	// failed and the strips should be redrawn.
	TilesUpdatedEvent struct{}

	// FramesInvalidatedEvent is emitted when frames were edited outside the
	// viewer and the affected tiles were marked stale.
	FramesInvalidatedEvent struct {
		Ranges []models.ChangeRange
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Channel string
		Error   error
	}

	// StatsEvent carries engine counters.
	StatsEvent struct {
		Tiles   tiles.Stats
		Totals  map[string]float64
		Failing []string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (TilesUpdatedEvent) isServiceEvent()      {}
func (FramesInvalidatedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()             {}
func (StatsEvent) isServiceEvent()             {}

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Manager owns the annotation database, the timeline engine and the
// background services feeding it, and routes their events to the UI.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	database    *db.DB
	dataset     *models.Dataset
	channels    []models.ChannelSpec
	engine      *timeline.Engine
	annotations *annotations.Service
	metrics     *metrics.Collector
	notify      Notifier
	failing     map[string]bool
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	stopMetrics context.CancelFunc
	closeOnce   sync.Once
}

// NewManager opens the database at cfg.DatabasePath, registers its channels
// and starts the engine and the annotation watcher.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		notify:    desktopNotify,
		failing:   make(map[string]bool),
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
		metrics:   metrics.New(),
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := m.initEngine(); err != nil {
		_ = m.database.Close()
		return nil, err
	}

	m.annotations, err = annotations.New(m.database, cfg.WatchDebounce)
	if err != nil {
		logger.Warn("Live reload disabled", "error", err)
	}

	if cfg.MetricsAddr != "" {
		m.startMetrics(cfg.MetricsAddr)
	}

	m.restoreSession()

	go m.routeEvents()

	return m, nil
}

func (m *Manager) initEngine() error {
	ds, err := m.database.GetDataset()
	if err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("no dataset in %s (create one with --demo N)", m.database.Path())
	}
	m.dataset = ds

	m.channels, err = m.database.GetChannels()
	if err != nil {
		return err
	}
	registry, err := BuildRegistry(m.database, m.channels)
	if err != nil {
		return err
	}

	m.engine, err = timeline.New(ds.Duration, registry, timeline.Config{
		BinsPerTile: m.cfg.BinsPerTile,
		Branching:   m.cfg.Branching,
		Capacity:    m.cfg.CacheCapacity,
		Workers:     m.cfg.Workers,
		Placeholder: m.cfg.Placeholder,
		Metrics:     m.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create timeline engine: %w", err)
	}

	logger.Info("Timeline engine started",
		"dataset", ds.Name,
		"frames", ds.Duration,
		"channels", len(m.channels),
		"levels", m.engine.Layout().MaxLevel()+1,
	)
	return nil
}

// BuildRegistry registers every channel spec with a source reading its
// frames from database.
func BuildRegistry(database *db.DB, specs []models.ChannelSpec) (*channel.Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("dataset declares no channels")
	}
	registry := channel.NewRegistry()
	for _, spec := range specs {
		card, err := channel.ParseCardinality(spec.Cardinality)
		if err != nil {
			return nil, &channel.ConfigError{ID: spec.ID, Reason: err.Error()}
		}
		agg, err := channel.ParseAggregator(spec.Aggregator)
		if err != nil {
			return nil, &channel.ConfigError{ID: spec.ID, Reason: err.Error()}
		}
		if err := registry.Register(spec.ID, database.Source(spec.ID), agg, card); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (m *Manager) startMetrics(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	m.stopMetrics = cancel
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := m.metrics.Serve(ctx, addr); err != nil {
			logger.Error("Metrics endpoint stopped", "addr", addr, "error", err)
			m.broadcast(ErrorEvent{Service: "metrics", Error: err})
		}
	}()
}

// restoreSession applies the saved viewport of the configured session. An
// invalid session is ignored.
func (m *Manager) restoreSession() {
	saved, err := m.database.LoadSession(m.cfg.SessionName)
	if err != nil {
		logger.Warn("Failed to load session", "session", m.cfg.SessionName, "error", err)
		return
	}
	if saved == nil {
		return
	}

	state := viewport.State{
		Duration:     m.dataset.Duration,
		Start:        saved.VisibleStart,
		End:          saved.VisibleEnd,
		Playhead:     saved.Playhead,
		Selection:    viewport.Selection{Start: saved.SelectionStart, End: saved.SelectionEnd},
		HasSelection: saved.HasSelection,
	}
	if err := m.engine.Viewport().Restore(state); err != nil {
		logger.Warn("Ignoring invalid saved session", "session", m.cfg.SessionName, "error", err)
		return
	}
	logger.Debug("Session restored", "session", m.cfg.SessionName,
		"start", saved.VisibleStart, "end", saved.VisibleEnd)
}

// SaveSession stores the current viewport under the configured session name.
func (m *Manager) SaveSession() error {
	s := m.engine.Viewport().State()
	return m.database.SaveSession(&models.ViewerSession{
		Name:           m.cfg.SessionName,
		VisibleStart:   s.Start,
		VisibleEnd:     s.End,
		Playhead:       s.Playhead,
		SelectionStart: s.Selection.Start,
		SelectionEnd:   s.Selection.End,
		HasSelection:   s.HasSelection,
	})
}

func (m *Manager) annotationEvents() <-chan annotations.Event {
	if m.annotations == nil {
		return nil
	}
	return m.annotations.Events()
}

// routeEvents routes events from the engine and services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case <-m.engine.Updates():
			m.checkFailures()
			m.broadcast(TilesUpdatedEvent{})

		case event := <-m.annotationEvents():
			m.handleAnnotationEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleAnnotationEvent invalidates the edited frames.
func (m *Manager) handleAnnotationEvent(event annotations.Event) {
	switch event.Type {
	case annotations.EventFramesChanged:
		duration := m.dataset.Duration
		var applied []models.ChangeRange
		for _, r := range event.Changes {
			end := min(r.End, duration)
			if err := m.engine.Invalidate(r.Channel, r.Start, end); err != nil {
				logger.Debug("Skipping change range", "channel", r.Channel,
					"start", r.Start, "end", r.End, "error", err)
				continue
			}
			applied = append(applied, models.ChangeRange{Channel: r.Channel, Start: r.Start, End: end})
		}
		if len(applied) > 0 {
			m.broadcast(FramesInvalidatedEvent{Ranges: applied})
		}

	case annotations.EventError:
		m.broadcast(ErrorEvent{
			Service: "annotations",
			Error:   event.Error,
		})
	}
}

// checkFailures reports channels whose aggregation started failing since the
// previous check.
func (m *Manager) checkFailures() {
	failures := m.engine.Failures()

	m.mu.Lock()
	var started []string
	for id := range failures {
		if !m.failing[id] {
			started = append(started, id)
		}
	}
	m.failing = make(map[string]bool, len(failures))
	for id := range failures {
		m.failing[id] = true
	}
	notify := m.notify
	m.mu.Unlock()

	slices.Sort(started)
	for _, id := range started {
		err := failures[id]
		logger.Error("Channel aggregation failing", "channel", id, "error", err)
		m.broadcast(ErrorEvent{Service: "aggregation", Channel: id, Error: err})

		if m.cfg.NotifyErrors && notify != nil {
			title := fmt.Sprintf("framescope: channel %s failing", id)
			if nerr := notify(title, err.Error()); nerr != nil {
				logger.Warn("Failed to send notification", "error", nerr)
			}
		}
	}
}

// SetNotifier replaces the desktop notifier.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notify = n
	m.mu.Unlock()
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// GetStats returns engine statistics.
func (m *Manager) GetStats() StatsEvent {
	m.mu.RLock()
	failing := slices.Sorted(maps.Keys(m.failing))
	m.mu.RUnlock()

	return StatsEvent{
		Tiles:   m.engine.Stats(),
		Totals:  m.metrics.Totals(),
		Failing: failing,
	}
}

// Engine returns the timeline engine.
func (m *Manager) Engine() *timeline.Engine {
	return m.engine
}

// Dataset returns the dataset being viewed.
func (m *Manager) Dataset() *models.Dataset {
	return m.dataset
}

// Channels returns the channel declarations in registration order.
func (m *Manager) Channels() []models.ChannelSpec {
	return m.channels
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close saves the session and stops every service.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		close(m.stopChan)

		if m.stopMetrics != nil {
			m.stopMetrics()
		}

		if err := m.SaveSession(); err != nil {
			errs = append(errs, err)
		}

		if m.annotations != nil {
			if err := m.annotations.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if err := m.engine.Close(); err != nil {
			errs = append(errs, err)
		}

		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()
	})
	return errors.Join(errs...)
}
