package recommender

import (
	"math"
	"time"
)

// Feature indexes one of the four taste attributes of a wine.
type Feature int

const (
	Acidity Feature = iota
	Tannin
	Body
	Sweetness

	NumFeatures = 4
)

// String returns the JSON/database name of the feature.
func (f Feature) String() string {
	switch f {
	case Acidity:
		return "acidity"
	case Tannin:
		return "tannin"
	case Body:
		return "body"
	case Sweetness:
		return "sweetness"
	default:
		return "unknown"
	}
}

// Native scale of every taste attribute.
const (
	MinFeatureValue = 1.0
	MaxFeatureValue = 5.0
)

// Vector is a complete set of taste attributes, indexed by Feature.
type Vector [NumFeatures]float64

// Slice returns the vector as a freshly allocated slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Rounded returns a copy with every component rounded to two decimals.
func (v Vector) Rounded() Vector {
	var out Vector
	for i, x := range v {
		out[i] = math.Round(x*100) / 100
	}
	return out
}

// OptionalVector holds taste attributes as stored; any of them may be nil.
type OptionalVector [NumFeatures]*float64

// NewOptionalVector builds an OptionalVector from individual attributes.
func NewOptionalVector(acidity, tannin, body, sweetness *float64) OptionalVector {
	return OptionalVector{acidity, tannin, body, sweetness}
}

// Complete reports whether every attribute is present and within the native
// 1–5 scale, returning the dense vector when it is.
func (o OptionalVector) Complete() (Vector, bool) {
	var v Vector
	for i, p := range o {
		if p == nil {
			return Vector{}, false
		}
		x := *p
		if math.IsNaN(x) || x < MinFeatureValue || x > MaxFeatureValue {
			return Vector{}, false
		}
		v[i] = x
	}
	return v, true
}

// RatedItem is one wine from the rating history.
type RatedItem struct {
	ItemID   int64
	Features OptionalVector
	Rating   int
	// Category is the primary grape variety.
	Category string
	RatedAt  time.Time
}

// CatalogItem is a candidate wine from the catalog.
type CatalogItem struct {
	ItemID   int64
	Features OptionalVector
	// CategoryType is the wine type used for bucketing (red, white, ...).
	CategoryType string
	// Category is the primary grape variety.
	Category string
	// SubCategories holds up to two secondary varieties. They do not take
	// part in scoring.
	SubCategories []string
}

// Bucket is one of the fixed output partitions.
type Bucket string

const (
	BucketRed       Bucket = "red"
	BucketWhite     Bucket = "white"
	BucketSparkling Bucket = "sparkling"
	BucketOther     Bucket = "other"
)

// Buckets lists every output bucket in response order.
var Buckets = []Bucket{BucketRed, BucketWhite, BucketSparkling, BucketOther}

// ScoredItem is a ranked candidate.
type ScoredItem struct {
	Item               CatalogItem
	Features           Vector
	FeatureSimilarity  float64
	CategorySimilarity float64
	Score              float64
}

// Recommendations maps every bucket to its ranked candidates. All four
// buckets are always present; empty buckets hold an empty, non-nil slice.
type Recommendations map[Bucket][]ScoredItem

func emptyRecommendations() Recommendations {
	recs := make(Recommendations, len(Buckets))
	for _, b := range Buckets {
		recs[b] = []ScoredItem{}
	}
	return recs
}
