package db

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/j-veylop/framescope/internal/channel"
	"github.com/j-veylop/framescope/internal/models"
)

func seedChannel(t *testing.T, db *DB, id string) {
	t.Helper()
	spec := &models.ChannelSpec{ID: id, Cardinality: "numeric", Aggregator: "numeric:mean"}
	if err := db.UpsertChannel(spec); err != nil {
		t.Fatalf("UpsertChannel failed: %v", err)
	}
}

func TestDataset_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	ds, err := db.GetDataset()
	if err != nil || ds != nil {
		t.Fatalf("GetDataset on empty db = %v, %v; want nil, nil", ds, err)
	}

	if err := db.SetDataset(&models.Dataset{Name: "clip", Duration: 1200, FrameRate: 24}); err != nil {
		t.Fatalf("SetDataset failed: %v", err)
	}
	if err := db.SetDataset(&models.Dataset{Name: "clip", Duration: 1500, FrameRate: 24}); err != nil {
		t.Fatalf("SetDataset update failed: %v", err)
	}

	ds, err = db.GetDataset()
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if ds.Duration != 1500 || ds.FrameRate != 24 || ds.Name != "clip" {
		t.Errorf("Unexpected dataset: %+v", ds)
	}

	if err := db.SetDataset(&models.Dataset{Duration: 0}); err == nil {
		t.Error("Expected error for zero duration")
	}
}

func TestChannels_UpsertAndList(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	labels := &models.ChannelSpec{
		ID:          "labels",
		Cardinality: "categorical",
		Aggregator:  "categorical:foreground",
		Labels:      map[int]string{0: "background", 2: "car"},
	}
	if err := db.UpsertChannel(labels); err != nil {
		t.Fatalf("UpsertChannel failed: %v", err)
	}
	seedChannel(t, db, "score")

	labels.Description = "object class"
	if err := db.UpsertChannel(labels); err != nil {
		t.Fatalf("UpsertChannel update failed: %v", err)
	}

	specs, err := db.GetChannels()
	if err != nil {
		t.Fatalf("GetChannels failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(specs))
	}
	if specs[0].ID != "labels" || specs[0].Description != "object class" || specs[0].Labels[2] != "car" {
		t.Errorf("Unexpected first channel: %+v", specs[0])
	}
	if specs[1].Labels != nil {
		t.Errorf("Expected no labels for numeric channel, got %v", specs[1].Labels)
	}
}

func TestFrames_WriteAndRead(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	seedChannel(t, db, "score")

	ctx := context.Background()
	if err := db.WriteFrames(ctx, "score", 10, []float64{1, math.NaN(), 3}); err != nil {
		t.Fatalf("WriteFrames failed: %v", err)
	}

	got, err := db.ReadFrames(ctx, "score", 8, 15)
	if err != nil {
		t.Fatalf("ReadFrames failed: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("Expected 7 values, got %d", len(got))
	}
	for i, want := range []float64{math.NaN(), math.NaN(), 1, math.NaN(), 3, math.NaN(), math.NaN()} {
		if math.IsNaN(want) != math.IsNaN(got[i]) || (!math.IsNaN(want) && got[i] != want) {
			t.Errorf("frame %d: expected %v, got %v", 8+i, want, got[i])
		}
	}

	if err := db.DeleteFrames(ctx, "score", 12, 13); err != nil {
		t.Fatalf("DeleteFrames failed: %v", err)
	}
	got, _ = db.ReadFrames(ctx, "score", 12, 13)
	if !math.IsNaN(got[0]) {
		t.Errorf("Expected deleted frame to read NaN, got %v", got[0])
	}
}

func TestFrames_WriteSpansBatches(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	seedChannel(t, db, "score")

	values := make([]float64, frameBatchSize+5)
	for i := range values {
		values[i] = float64(i)
	}
	ctx := context.Background()
	if err := db.WriteFrames(ctx, "score", 0, values); err != nil {
		t.Fatalf("WriteFrames failed: %v", err)
	}

	got, err := db.ReadFrames(ctx, "score", frameBatchSize-2, frameBatchSize+5)
	if err != nil {
		t.Fatalf("ReadFrames failed: %v", err)
	}
	if !slices.Equal(got, values[frameBatchSize-2:]) {
		t.Errorf("Unexpected values across batch boundary: %v", got)
	}
}

func TestFrameSource_ImplementsChannelSource(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	seedChannel(t, db, "score")

	var src channel.Source = db.Source("score")
	if err := db.WriteFrames(context.Background(), "score", 0, []float64{4, 5}); err != nil {
		t.Fatalf("WriteFrames failed: %v", err)
	}

	got, err := src.ReadRange(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if !slices.Equal(got, []float64{4, 5}) {
		t.Errorf("Expected [4 5], got %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadRange(ctx, 0, 2); err == nil {
		t.Error("Expected error reading with cancelled context")
	}
}
