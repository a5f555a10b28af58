// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Dataset describes the frame sequence being annotated.
type Dataset struct {
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name"`
	Duration  int       `json:"duration"`
	FrameRate float64   `json:"frameRate,omitempty"`
}

// Timecode formats a frame as seconds when the frame rate is known.
func (d *Dataset) Timecode(frame int) string {
	if d.FrameRate <= 0 {
		return "#" + strconv.Itoa(frame)
	}
	secs := float64(frame) / d.FrameRate
	m := int(secs) / 60
	s := secs - float64(m*60)
	return fmt.Sprintf("%d:%05.2f", m, s)
}

// ChannelSpec is a channel declaration as persisted in the annotation store.
// Cardinality and Aggregator use the textual forms understood by the channel
// package ("numeric", "categorical:foreground", ...).
type ChannelSpec struct {
	CreatedAt   time.Time      `json:"createdAt"`
	Labels      map[int]string `json:"labels,omitempty"`
	ID          string         `json:"id"`
	Cardinality string         `json:"cardinality"`
	Aggregator  string         `json:"aggregator"`
	Description string         `json:"description,omitempty"`
}

// LabelName returns the display name of a categorical value.
func (c *ChannelSpec) LabelName(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	if name, ok := c.Labels[int(v)]; ok && float64(int(v)) == v {
		return name
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}
