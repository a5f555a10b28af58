package models

import (
	"math"
	"slices"
	"testing"
)

func TestCoalesceChanges(t *testing.T) {
	tests := []struct {
		name    string
		changes []FrameChange
		want    []ChangeRange
	}{
		{
			name: "empty",
		},
		{
			name:    "single frame",
			changes: []FrameChange{{"labels", 7}},
			want:    []ChangeRange{{"labels", 7, 8}},
		},
		{
			name: "contiguous and duplicate frames merge",
			changes: []FrameChange{
				{"labels", 1002}, {"labels", 1000}, {"labels", 1001}, {"labels", 1001}, {"labels", 1010},
			},
			want: []ChangeRange{{"labels", 1000, 1003}, {"labels", 1010, 1011}},
		},
		{
			name:    "channels stay separate",
			changes: []FrameChange{{"score", 5}, {"labels", 5}, {"labels", 6}},
			want:    []ChangeRange{{"labels", 5, 7}, {"score", 5, 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoalesceChanges(tt.changes)
			if !slices.Equal(got, tt.want) {
				t.Errorf("CoalesceChanges() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeRanges(t *testing.T) {
	got := MergeRanges([]ChangeRange{
		{"score", 10, 20},
		{"labels", 30, 40},
		{"labels", 0, 10},
		{"labels", 10, 12},
		{"labels", 35, 50},
		{"labels", 60, 60},
		{"score", 25, 30},
	})
	want := []ChangeRange{
		{"labels", 0, 12},
		{"labels", 30, 50},
		{"score", 10, 20},
		{"score", 25, 30},
	}
	if !slices.Equal(got, want) {
		t.Errorf("MergeRanges() = %v, want %v", got, want)
	}
	if MergeRanges(nil) != nil {
		t.Error("MergeRanges(nil) should be nil")
	}
}

func TestChannelSpec_LabelName(t *testing.T) {
	spec := ChannelSpec{Labels: map[int]string{0: "background", 3: "car"}}

	tests := []struct {
		v    float64
		want string
	}{
		{3, "car"},
		{0, "background"},
		{2, "2"},
		{3.5, "3.5"},
		{math.NaN(), "-"},
	}
	for _, tt := range tests {
		if got := spec.LabelName(tt.v); got != tt.want {
			t.Errorf("LabelName(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDataset_Timecode(t *testing.T) {
	d := Dataset{Duration: 1000}
	if got := d.Timecode(42); got != "#42" {
		t.Errorf("Timecode() without frame rate = %q", got)
	}
	d.FrameRate = 25
	if got := d.Timecode(1550); got != "1:02.00" {
		t.Errorf("Timecode(1550) = %q, want 1:02.00", got)
	}
}
