package channel

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestReducer_Numeric(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		agg    Aggregator
		values []float64
		want   float64
	}{
		{"mean", Mean(), []float64{1, 2, 3, 4}, 2.5},
		{"mean skips missing", Mean(), []float64{2, nan, 4}, 3},
		{"max", Max(), []float64{1, 7, 3}, 7},
		{"min", Min(), []float64{5, -1, 3}, -1},
		{"single", Max(), []float64{9}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.agg.NewReducer().Reduce(tt.values)
			if got != tt.want {
				t.Errorf("Reduce(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestReducer_AllMissing(t *testing.T) {
	nan := math.NaN()
	for _, agg := range []Aggregator{Mean(), Max(), WinnerTakesAll(VotePlurality)} {
		if got := agg.NewReducer().Reduce([]float64{nan, nan}); !math.IsNaN(got) {
			t.Errorf("%s: Reduce(all NaN) = %v, want NaN", agg, got)
		}
	}
}

func TestReducer_Categorical(t *testing.T) {
	tests := []struct {
		name   string
		vote   Vote
		values []float64
		want   float64
	}{
		{"plurality", VotePlurality, []float64{2, 1, 2, 3}, 2},
		{"tie goes to smallest", VotePlurality, []float64{3, 1, 3, 1}, 1},
		{"background wins plurality", VotePlurality, []float64{0, 0, 0, 4}, 0},
		{"foreground beats background", VoteForeground, []float64{0, 0, 0, 4}, 4},
		{"foreground only background", VoteForeground, []float64{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := WinnerTakesAll(tt.vote).NewReducer()
			// Reuse the reducer to check scratch state is cleared.
			_ = r.Reduce([]float64{9, 9, 9})
			if got := r.Reduce(tt.values); got != tt.want {
				t.Errorf("Reduce(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestParseAggregator_RoundTrip(t *testing.T) {
	for _, agg := range []Aggregator{Mean(), Max(), Min(), WinnerTakesAll(VotePlurality), WinnerTakesAll(VoteForeground)} {
		parsed, err := ParseAggregator(agg.String())
		if err != nil {
			t.Fatalf("ParseAggregator(%q): %v", agg, err)
		}
		if parsed != agg {
			t.Errorf("ParseAggregator(%q) = %v", agg, parsed)
		}
	}
	if _, err := ParseAggregator("numeric:median"); err == nil {
		t.Error("expected error for unknown aggregator")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	src := SliceSource{1, 2, 3}

	if err := r.Register("score", src, Mean(), Numeric); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("score", src, Mean(), Numeric); err != nil {
		t.Errorf("idempotent Register returned %v", err)
	}

	var cfgErr *ConfigError
	if err := r.Register("score", src, Max(), Numeric); !errors.As(err, &cfgErr) {
		t.Errorf("conflicting aggregator: err = %v, want ConfigError", err)
	}
	if err := r.Register("labels", src, Mean(), Categorical); !errors.As(err, &cfgErr) {
		t.Errorf("mismatched cardinality: err = %v, want ConfigError", err)
	}
	if err := r.Register("", src, Mean(), Numeric); !errors.As(err, &cfgErr) {
		t.Errorf("empty id: err = %v, want ConfigError", err)
	}
	if err := r.Register("nil", nil, Mean(), Numeric); !errors.As(err, &cfgErr) {
		t.Errorf("nil source: err = %v, want ConfigError", err)
	}

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Freeze(t *testing.T) {
	r := NewRegistry()
	src := SliceSource{1}
	if err := r.Register("a", src, Mean(), Numeric); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	if err := r.Register("a", src, Mean(), Numeric); err != nil {
		t.Errorf("re-registering after freeze returned %v", err)
	}
	var cfgErr *ConfigError
	if err := r.Register("b", src, Mean(), Numeric); !errors.As(err, &cfgErr) {
		t.Errorf("new id after freeze: err = %v, want ConfigError", err)
	}

	ids := r.IDs()
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestSourceFunc_ReadRange(t *testing.T) {
	src := SourceFunc(func(frame int) (float64, error) {
		if frame == 5 {
			return 0, errors.New("boom")
		}
		return float64(frame * 2), nil
	})

	got, err := src.ReadRange(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	want := []float64{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := src.ReadRange(context.Background(), 4, 6); err == nil {
		t.Error("expected source error to propagate")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadRange(ctx, 0, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ReadRange err = %v", err)
	}
}

func TestSliceSource_PadsWithNaN(t *testing.T) {
	got, _ := SliceSource{1, 2}.ReadRange(context.Background(), 1, 4)
	if got[0] != 2 || !math.IsNaN(got[1]) || !math.IsNaN(got[2]) {
		t.Errorf("ReadRange = %v", got)
	}
}
