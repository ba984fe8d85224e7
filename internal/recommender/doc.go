// Package recommender turns a rating history into a taste profile and ranks
// unrated wines against it.
//
// Two computations cooperate:
//
//   - ComputePreferences reduces rated wines to a rating²-weighted mean of
//     acidity, tannin, body and sweetness, plus the normalised share of
//     rating weight per primary grape variety.
//   - ComputeRecommendations scores every unrated, fully described catalog
//     wine as 0.9·feature similarity + 0.1·variety affinity and keeps the top
//     five per wine-type bucket.
//
// Both functions are pure. They hold no state, perform no I/O and return the
// same output for the same input, so callers may run them concurrently on
// their own snapshots of the catalog and rating history.
package recommender
