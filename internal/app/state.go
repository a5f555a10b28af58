// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"slices"
	"sync"
	"time"

	"github.com/j-veylop/framescope/internal/models"
	"github.com/j-veylop/framescope/internal/services"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
	maxRecentEdits   = 20
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Stats   bool
}

// State is shared between the root model and the tabs.
type State struct {
	mu sync.RWMutex

	Dataset  *models.Dataset
	Channels []models.ChannelSpec
	Stats    *services.StatsEvent

	Loading LoadingState

	LastUpdated time.Time

	editCount       int
	recentEdits     []models.ChangeRange
	notifications   []Notification
	notificationSeq int
}

// NewState returns an empty state waiting for the initial load.
func NewState() *State {
	return &State{
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "stats":
		s.Loading.Stats = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Stats
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// SetDataset records the dataset and its channel declarations.
func (s *State) SetDataset(ds *models.Dataset, channels []models.ChannelSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dataset = ds
	s.Channels = slices.Clone(channels)
	s.LastUpdated = time.Now()
}

// GetDataset returns the dataset, or nil before the initial load.
func (s *State) GetDataset() *models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Dataset
}

// GetChannels returns a copy of the channel declarations.
func (s *State) GetChannels() []models.ChannelSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Channels)
}

// GetChannel returns the declaration of id.
func (s *State) GetChannel(id string) (models.ChannelSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return models.ChannelSpec{}, false
}

// SetStats updates the statistics.
func (s *State) SetStats(stats services.StatsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats = &stats
	s.LastUpdated = time.Now()
}

// GetStats returns the current statistics.
func (s *State) GetStats() *services.StatsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// RecordEdits remembers frame ranges edited outside the viewer. Only the most
// recent ranges are kept.
func (s *State) RecordEdits(ranges []models.ChangeRange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.editCount += len(ranges)
	s.recentEdits = append(s.recentEdits, ranges...)
	if len(s.recentEdits) > maxRecentEdits {
		s.recentEdits = s.recentEdits[len(s.recentEdits)-maxRecentEdits:]
	}
}

// GetEdits returns the number of edited ranges seen and the most recent ones,
// oldest first.
func (s *State) GetEdits() (int, []models.ChangeRange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editCount, slices.Clone(s.recentEdits)
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// GetLastUpdated returns the last time the state was updated.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.LastUpdated)
}
