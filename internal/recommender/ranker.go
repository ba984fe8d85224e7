package recommender

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Blend of the two similarity terms in the final score.
const (
	FeatureSimilarityWeight  = 0.9
	CategorySimilarityWeight = 0.1
)

// MaxPerBucket bounds the length of every bucket.
const MaxPerBucket = 5

// Per-attribute importance in the weighted distance. Acidity and tannin
// dominate the perceived style of a wine.
const (
	AcidityWeight   = 1.5
	TanninWeight    = 1.5
	BodyWeight      = 1.0
	SweetnessWeight = 1.0
)

var featureWeights = []float64{AcidityWeight, TanninWeight, BodyWeight, SweetnessWeight}

// Normalize maps a value from the native 1–5 scale onto 0–1.
func Normalize(x float64) float64 {
	return (x - MinFeatureValue) / (MaxFeatureValue - MinFeatureValue)
}

func normalized(v Vector) []float64 {
	out := v.Slice()
	for i := range out {
		out[i] = Normalize(out[i])
	}
	return out
}

// FeatureSimilarity returns 1 minus the weighted Euclidean distance between
// two normalised attribute vectors. For vectors on the native scale the
// result lies in [0, 1] and equals 1 exactly for identical vectors.
func FeatureSimilarity(pref, item Vector) float64 {
	return featureSimilarity(normalized(pref), item)
}

func featureSimilarity(normPref []float64, item Vector) float64 {
	diff := normalized(item)
	floats.Sub(diff, normPref)
	floats.Mul(diff, diff)
	distance := math.Sqrt(floats.Dot(featureWeights, diff) / floats.Sum(featureWeights))
	return 1 - distance
}

// CategorySimilarity returns the affinity of the candidate's primary variety,
// or 0 when the variety is unknown or was never rated.
func CategorySimilarity(affinity map[string]float64, category string) float64 {
	if category == "" {
		return 0
	}
	return affinity[category]
}

// BucketFor maps a wine type onto its output bucket. Matching is
// case-insensitive; anything unrecognised lands in BucketOther.
func BucketFor(categoryType string) Bucket {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(categoryType))); b {
	case BucketRed, BucketWhite, BucketSparkling:
		return b
	default:
		return BucketOther
	}
}

// ComputeRecommendations ranks the catalog against prefs.
//
// Candidates whose id is in excluded, or that lack a complete attribute
// vector, are skipped. Within a bucket candidates are ordered by descending
// score, ties broken by ascending item id, and cut to MaxPerBucket. Without a
// profile every bucket is empty.
func ComputeRecommendations(prefs Preferences, catalog []CatalogItem, excluded map[int64]struct{}) Recommendations {
	recs := emptyRecommendations()
	if !prefs.HasProfile() {
		return recs
	}

	normPref := normalized(prefs.Vector)
	for _, item := range catalog {
		if _, skip := excluded[item.ItemID]; skip {
			continue
		}
		v, ok := item.Features.Complete()
		if !ok {
			continue
		}

		featureSim := featureSimilarity(normPref, v)
		categorySim := CategorySimilarity(prefs.Affinity, item.Category)
		bucket := BucketFor(item.CategoryType)
		recs[bucket] = append(recs[bucket], ScoredItem{
			Item:               item,
			Features:           v,
			FeatureSimilarity:  featureSim,
			CategorySimilarity: categorySim,
			Score:              FeatureSimilarityWeight*featureSim + CategorySimilarityWeight*categorySim,
		})
	}

	for bucket, items := range recs {
		sort.Slice(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score > items[j].Score
			}
			return items[i].Item.ItemID < items[j].Item.ItemID
		})
		if len(items) > MaxPerBucket {
			recs[bucket] = items[:MaxPerBucket]
		}
	}
	return recs
}
