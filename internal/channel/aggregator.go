// Package channel declares per-frame data channels and how their values are
// reduced into timeline bins.
package channel

import (
	"fmt"
	"math"
)

// Cardinality describes the value domain of a channel.
type Cardinality int

const (
	// Numeric channels carry continuous values.
	Numeric Cardinality = iota
	// Categorical channels carry discrete labels encoded as whole numbers.
	Categorical
)

// String returns the string representation of the Cardinality.
func (c Cardinality) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// ParseCardinality parses the output of Cardinality.String.
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "numeric":
		return Numeric, nil
	case "categorical":
		return Categorical, nil
	default:
		return 0, fmt.Errorf("unknown cardinality %q", s)
	}
}

// Reduction selects how numeric values collapse into one bin.
type Reduction int

const (
	ReduceMean Reduction = iota
	ReduceMax
	ReduceMin
)

// Vote selects which label wins a categorical bin.
type Vote int

const (
	// VotePlurality picks the most frequent label; ties go to the smallest.
	VotePlurality Vote = iota
	// VoteForeground behaves like VotePlurality but ignores the background
	// label (zero) unless it is the only label present.
	VoteForeground
)

// Aggregator is a closed description of a reduction policy. The zero value is
// the numeric mean. Aggregators are comparable, which the registry relies on
// to detect conflicting registrations.
type Aggregator struct {
	kind   Cardinality
	reduce Reduction
	vote   Vote
}

// Mean averages numeric values.
func Mean() Aggregator { return Aggregator{kind: Numeric, reduce: ReduceMean} }

// Max keeps the largest numeric value.
func Max() Aggregator { return Aggregator{kind: Numeric, reduce: ReduceMax} }

// Min keeps the smallest numeric value.
func Min() Aggregator { return Aggregator{kind: Numeric, reduce: ReduceMin} }

// WinnerTakesAll reduces categorical labels with the given vote policy.
func WinnerTakesAll(v Vote) Aggregator {
	return Aggregator{kind: Categorical, vote: v}
}

// Cardinality returns the value domain this aggregator reduces.
func (a Aggregator) Cardinality() Cardinality { return a.kind }

// String returns a stable name such as "numeric:max" or
// "categorical:foreground".
func (a Aggregator) String() string {
	if a.kind == Categorical {
		switch a.vote {
		case VoteForeground:
			return "categorical:foreground"
		default:
			return "categorical:plurality"
		}
	}
	switch a.reduce {
	case ReduceMax:
		return "numeric:max"
	case ReduceMin:
		return "numeric:min"
	default:
		return "numeric:mean"
	}
}

// ParseAggregator parses the output of Aggregator.String.
func ParseAggregator(s string) (Aggregator, error) {
	switch s {
	case "numeric:mean":
		return Mean(), nil
	case "numeric:max":
		return Max(), nil
	case "numeric:min":
		return Min(), nil
	case "categorical:plurality":
		return WinnerTakesAll(VotePlurality), nil
	case "categorical:foreground":
		return WinnerTakesAll(VoteForeground), nil
	default:
		return Aggregator{}, fmt.Errorf("unknown aggregator %q", s)
	}
}

// Reducer folds the raw values of one bin. A Reducer keeps scratch space and
// must not be shared between goroutines.
type Reducer struct {
	agg    Aggregator
	counts map[float64]int
}

// NewReducer returns a reducer for a.
func (a Aggregator) NewReducer() *Reducer {
	r := &Reducer{agg: a}
	if a.kind == Categorical {
		r.counts = make(map[float64]int)
	}
	return r
}

// Reduce aggregates values. NaN marks a missing frame and is skipped; a bin
// without any present value reduces to NaN.
func (r *Reducer) Reduce(values []float64) float64 {
	if len(values) == 1 {
		return values[0]
	}
	if r.agg.kind == Categorical {
		return r.vote(values)
	}
	return r.numeric(values)
}

func (r *Reducer) numeric(values []float64) float64 {
	var (
		acc float64
		n   int
	)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if n == 0 {
			acc = v
			n++
			continue
		}
		switch r.agg.reduce {
		case ReduceMax:
			acc = math.Max(acc, v)
		case ReduceMin:
			acc = math.Min(acc, v)
		default:
			acc += v
		}
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	if r.agg.reduce == ReduceMean {
		return acc / float64(n)
	}
	return acc
}

func (r *Reducer) vote(values []float64) float64 {
	clear(r.counts)
	for _, v := range values {
		if !math.IsNaN(v) {
			r.counts[v]++
		}
	}
	if len(r.counts) == 0 {
		return math.NaN()
	}
	if r.agg.vote == VoteForeground && len(r.counts) > 1 {
		delete(r.counts, 0)
	}

	winner, best := math.NaN(), 0
	for label, n := range r.counts {
		if n > best || (n == best && label < winner) {
			winner, best = label, n
		}
	}
	return winner
}
