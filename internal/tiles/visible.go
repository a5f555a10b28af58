package tiles

import (
	"cmp"
	"slices"
)

// VisibleSet records which tiles are on screen and which are one-tile
// prefetch neighbours. Visible tiles are pinned against eviction and run at
// PriorityVisible; neighbours run at PriorityNeighbor. A nil *VisibleSet is
// empty.
type VisibleSet struct {
	visible   map[Key]struct{}
	neighbors map[Key]struct{}
}

// NewVisibleSet creates an empty set.
func NewVisibleSet() *VisibleSet {
	return &VisibleSet{
		visible:   make(map[Key]struct{}),
		neighbors: make(map[Key]struct{}),
	}
}

// AddVisible marks k as visible, promoting it if it was a neighbour.
func (v *VisibleSet) AddVisible(k Key) {
	delete(v.neighbors, k)
	v.visible[k] = struct{}{}
}

// AddNeighbor marks k as a prefetch neighbour unless it is already visible.
func (v *VisibleSet) AddNeighbor(k Key) {
	if _, ok := v.visible[k]; ok {
		return
	}
	v.neighbors[k] = struct{}{}
}

// IsVisible reports whether k is pinned.
func (v *VisibleSet) IsVisible(k Key) bool {
	if v == nil {
		return false
	}
	_, ok := v.visible[k]
	return ok
}

// Keep reports whether k belongs to the visible or neighbour set.
func (v *VisibleSet) Keep(k Key) bool {
	if v == nil {
		return false
	}
	if _, ok := v.visible[k]; ok {
		return true
	}
	_, ok := v.neighbors[k]
	return ok
}

// Priority returns the scheduling priority of k.
func (v *VisibleSet) Priority(k Key) Priority {
	switch {
	case v.IsVisible(k):
		return PriorityVisible
	case v.Keep(k):
		return PriorityNeighbor
	default:
		return PriorityBackground
	}
}

// Visible returns the visible keys in channel, level, tile order.
func (v *VisibleSet) Visible() []Key {
	if v == nil {
		return nil
	}
	return sortedKeys(v.visible)
}

// Neighbors returns the neighbour keys in channel, level, tile order.
func (v *VisibleSet) Neighbors() []Key {
	if v == nil {
		return nil
	}
	return sortedKeys(v.neighbors)
}

// Len returns the number of visible tiles.
func (v *VisibleSet) Len() int {
	if v == nil {
		return 0
	}
	return len(v.visible)
}

func sortedKeys(m map[Key]struct{}) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b Key) int {
	return cmp.Or(
		cmp.Compare(a.Channel, b.Channel),
		cmp.Compare(a.Level, b.Level),
		cmp.Compare(a.Tile, b.Tile),
	)
}
