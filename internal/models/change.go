package models

import (
	"cmp"
	"slices"
)

// FrameChange is one row of the frame change log.
type FrameChange struct {
	Channel string
	Frame   int
}

// ChangeRange is a half-open run [Start, End) of changed frames.
type ChangeRange struct {
	Channel string
	Start   int
	End     int
}

// Len returns the number of frames in the range.
func (r ChangeRange) Len() int { return r.End - r.Start }

// CoalesceChanges merges individual frame changes into contiguous ranges per
// channel, ordered by channel then start frame. Duplicates collapse.
func CoalesceChanges(changes []FrameChange) []ChangeRange {
	if len(changes) == 0 {
		return nil
	}

	sorted := slices.Clone(changes)
	slices.SortFunc(sorted, func(a, b FrameChange) int {
		return cmp.Or(cmp.Compare(a.Channel, b.Channel), cmp.Compare(a.Frame, b.Frame))
	})

	var out []ChangeRange
	cur := ChangeRange{Channel: sorted[0].Channel, Start: sorted[0].Frame, End: sorted[0].Frame + 1}
	for _, c := range sorted[1:] {
		if c.Channel == cur.Channel && c.Frame <= cur.End {
			cur.End = max(cur.End, c.Frame+1)
			continue
		}
		out = append(out, cur)
		cur = ChangeRange{Channel: c.Channel, Start: c.Frame, End: c.Frame + 1}
	}
	return append(out, cur)
}

// MergeRanges merges overlapping or adjacent ranges of the same channel,
// ordered by channel then start frame. Empty ranges are dropped.
func MergeRanges(ranges []ChangeRange) []ChangeRange {
	sorted := make([]ChangeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	slices.SortFunc(sorted, func(a, b ChangeRange) int {
		return cmp.Or(cmp.Compare(a.Channel, b.Channel), cmp.Compare(a.Start, b.Start))
	})

	out := []ChangeRange{sorted[0]}
	for _, r := range sorted[1:] {
		cur := &out[len(out)-1]
		if r.Channel == cur.Channel && r.Start <= cur.End {
			cur.End = max(cur.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}
