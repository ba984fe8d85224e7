package recommender

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Valid rating range.
const (
	MinRating = 1
	MaxRating = 5
)

// Preferences is the taste profile derived from a rating history.
//
// The zero value means "no preferences yet": nothing can be ranked against it.
type Preferences struct {
	// Vector is the rating²-weighted mean of the rated wines' attributes at
	// full precision. Use Vector.Rounded for display.
	Vector Vector
	// Affinity maps each primary variety to its share of the total rating
	// weight. Ratings of wines without a variety are kept under the empty
	// key so the shares always sum to one.
	Affinity map[string]float64

	vectorWeight float64
}

// HasProfile reports whether at least one fully described wine contributed
// to the vector.
func (p Preferences) HasProfile() bool {
	return p.vectorWeight > 0
}

// RatingWeight returns the weight a rating carries: its square, so a five
// counts twenty-five times as much as a one.
func RatingWeight(rating int) float64 {
	return float64(rating * rating)
}

// ComputePreferences aggregates a rating history.
//
// Ratings outside 1–5 are dropped. Wines with a missing or out-of-range
// attribute still count towards the variety affinity but not towards the
// vector. An empty history yields the zero Preferences.
func ComputePreferences(history []RatedItem) Preferences {
	var (
		columns [NumFeatures][]float64
		weights []float64
		total   float64
		byLabel = make(map[string]float64)
	)

	for _, item := range history {
		if item.Rating < MinRating || item.Rating > MaxRating {
			continue
		}
		w := RatingWeight(item.Rating)
		byLabel[item.Category] += w
		total += w

		v, ok := item.Features.Complete()
		if !ok {
			continue
		}
		for f := range columns {
			columns[f] = append(columns[f], v[f])
		}
		weights = append(weights, w)
	}

	if total == 0 {
		return Preferences{}
	}

	prefs := Preferences{
		Affinity: make(map[string]float64, len(byLabel)),
	}
	for label, w := range byLabel {
		prefs.Affinity[label] = w / total
	}

	if len(weights) == 0 {
		return prefs
	}
	prefs.vectorWeight = floats.Sum(weights)
	for f := range columns {
		prefs.Vector[f] = stat.Mean(columns[f], weights)
	}
	return prefs
}
