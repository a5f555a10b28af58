package channel

import (
	"fmt"
	"sync"
)

// ConfigError reports an invalid or conflicting channel registration. It is
// fatal at setup time.
type ConfigError struct {
	ID     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %q: %s", e.ID, e.Reason)
}

// Channel is a registered per-frame data stream.
type Channel struct {
	ID          string
	Source      Source
	Aggregator  Aggregator
	Cardinality Cardinality
}

// Registry maps channel identifiers to their source and aggregation policy.
// Channels are registered before the first query; Freeze closes the registry
// to new identifiers.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	order    []string
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register declares a channel. Registering the same id again with the same
// aggregator and cardinality is a no-op that keeps the original source.
func (r *Registry) Register(id string, src Source, agg Aggregator, card Cardinality) error {
	if id == "" {
		return &ConfigError{ID: id, Reason: "empty identifier"}
	}
	if src == nil {
		return &ConfigError{ID: id, Reason: "nil source"}
	}
	if agg.Cardinality() != card {
		return &ConfigError{
			ID:     id,
			Reason: fmt.Sprintf("aggregator %s cannot reduce %s values", agg, card),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.channels[id]; ok {
		if existing.Aggregator != agg || existing.Cardinality != card {
			return &ConfigError{
				ID: id,
				Reason: fmt.Sprintf("already registered as %s/%s, got %s/%s",
					existing.Cardinality, existing.Aggregator, card, agg),
			}
		}
		return nil
	}

	if r.frozen {
		return &ConfigError{ID: id, Reason: "registry is frozen after the first query"}
	}

	r.channels[id] = Channel{ID: id, Source: src, Aggregator: agg, Cardinality: card}
	r.order = append(r.order, id)
	return nil
}

// Lookup returns the channel registered under id.
func (r *Registry) Lookup(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// IDs returns channel identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Freeze rejects registration of new identifiers from now on.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}
