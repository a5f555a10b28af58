package db

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/models"
)

// DemoChannels are the channels created by SeedDemo.
var DemoChannels = []models.ChannelSpec{
	{
		ID:          "labels",
		Cardinality: "categorical",
		Aggregator:  "categorical:foreground",
		Description: "per-frame object class",
		Labels:      map[int]string{0: "background", 1: "person", 2: "car", 3: "bicycle", 4: "dog"},
	},
	{
		ID:          "instances",
		Cardinality: "numeric",
		Aggregator:  "numeric:max",
		Description: "annotated instances per frame",
	},
	{
		ID:          "score",
		Cardinality: "numeric",
		Aggregator:  "numeric:mean",
		Description: "detector confidence",
	},
}

// SeedDemo fills the database with a synthetic dataset of frames frames. The
// change log produced by the seed is pruned so watchers start clean.
func (db *DB) SeedDemo(ctx context.Context, frames int, seed uint64) error {
	if frames <= 0 {
		return fmt.Errorf("invalid demo length %d", frames)
	}

	if err := db.SetDataset(&models.Dataset{Name: "demo", Duration: frames, FrameRate: 30}); err != nil {
		return err
	}
	for i := range DemoChannels {
		if err := db.UpsertChannel(&DemoChannels[i]); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	series := map[string][]float64{
		"labels":    demoLabels(rng, frames),
		"instances": demoInstances(rng, frames),
		"score":     demoScore(rng, frames),
	}
	for _, spec := range DemoChannels {
		if err := db.WriteFrames(ctx, spec.ID, 0, series[spec.ID]); err != nil {
			return err
		}
	}

	latest, err := db.LatestChangeID(ctx)
	if err != nil {
		return err
	}
	if _, err := db.PruneChanges(ctx, latest); err != nil {
		return err
	}

	logger.Info("Seeded demo dataset", "frames", frames, "channels", len(DemoChannels))
	return nil
}

// demoLabels produces runs of one class separated by background.
func demoLabels(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for f := 0; f < n; {
		run := 20 + rng.IntN(1500)
		label := 0.0
		if rng.Float64() < 0.5 {
			label = float64(1 + rng.IntN(4))
		}
		for end := min(f+run, n); f < end; f++ {
			out[f] = label
		}
	}
	return out
}

// demoInstances is a slow random walk over 0..9.
func demoInstances(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	level := 2
	for f := range out {
		if rng.Float64() < 0.02 {
			level = max(0, min(9, level+rng.IntN(3)-1))
		}
		out[f] = float64(level)
	}
	return out
}

// demoScore is a noisy wave in [0, 1] with occasional gaps of missing frames.
func demoScore(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	gap := 0
	for f := range out {
		if gap > 0 {
			out[f] = math.NaN()
			gap--
			continue
		}
		if rng.Float64() < 0.0005 {
			gap = 10 + rng.IntN(200)
		}
		v := 0.5 + 0.35*math.Sin(2*math.Pi*float64(f)/5000) + 0.1*(rng.Float64()-0.5)
		out[f] = math.Max(0, math.Min(1, v))
	}
	return out
}
