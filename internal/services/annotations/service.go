// Package annotations watches the annotation database for frame edits made by
// other processes and reports them as invalidated frame ranges.
package annotations

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/framescope/internal/db"
	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/models"
)

// DefaultDebounce coalesces the burst of writes a single transaction causes.
const DefaultDebounce = 100 * time.Millisecond

// pollLimit bounds the change rows read per query.
const pollLimit = 5000

// Event represents an annotations service event.
type Event struct {
	Type    EventType
	Error   error
	Changes []models.ChangeRange
}

// EventType defines the type of annotations event.
type EventType int

const (
	EventFramesChanged EventType = iota
	EventError
)

// Service tails the frame change log whenever the database files change.
type Service struct {
	mu            sync.Mutex
	database      *db.DB
	watcher       *fsnotify.Watcher
	debounce      time.Duration
	lastID        int64
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	closeOnce     sync.Once
}

// New creates the service and starts watching the directory holding the
// database. Changes already in the log are skipped.
func New(database *db.DB, debounce time.Duration) (*Service, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	lastID, err := database.LatestChangeID(context.Background())
	if err != nil {
		return nil, err
	}

	s := &Service{
		database:  database,
		debounce:  debounce,
		lastID:    lastID,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	return s, nil
}

// Events returns the event channel for subscribing to frame edits.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Poll reads every change logged since the previous poll, prunes it from the
// log and emits one EventFramesChanged carrying the coalesced ranges. It
// returns the ranges it emitted.
func (s *Service) Poll(ctx context.Context) ([]models.ChangeRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.ChangeRange
	last := s.lastID
	for {
		ranges, next, err := s.database.ChangesSince(ctx, last, pollLimit)
		if err != nil {
			return nil, err
		}
		if next == last {
			break
		}
		last = next
		all = append(all, ranges...)
	}
	if last == s.lastID {
		return nil, nil
	}
	s.lastID = last

	if _, err := s.database.PruneChanges(ctx, last); err != nil {
		logger.Warn("Failed to prune change log", "through", last, "error", err)
	}

	changes := models.MergeRanges(all)
	logger.Debug("Frame edits detected", "ranges", len(changes), "last_id", last)
	s.sendEvent(Event{Type: EventFramesChanged, Changes: changes})
	return changes, nil
}

// startWatcher starts the file system watcher.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory: SQLite recreates the WAL and journal files
	dir := filepath.Dir(s.database.Path())
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// isDatabaseFile reports whether name is the database or one of its
// sidecar files.
func (s *Service) isDatabaseFile(name string) bool {
	base := filepath.Base(s.database.Path())
	got := filepath.Base(name)
	return got == base || strings.HasPrefix(got, base+"-")
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.isDatabaseFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.schedulePoll()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("Annotation watcher error", "error", err)
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) schedulePoll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, s.handleChange)
}

func (s *Service) handleChange() {
	select {
	case <-s.stopChan:
		return
	default:
	}
	if _, err := s.Poll(context.Background()); err != nil {
		s.sendEvent(Event{Type: EventError, Error: err})
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
