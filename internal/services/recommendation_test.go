package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/internal/storage"
)

type recommendationFixture struct {
	store   storage.Store
	ratings *RatingService
	recs    *RecommendationService
}

func newRecommendationFixture(t *testing.T, kv database.KeyValueStore) recommendationFixture {
	t.Helper()
	store := newSeededStore(t)
	metrics := NewMetricsCollector(prometheus.NewRegistry())
	cache := NewRecommendationCache(kv, config.CachingConfig{Enabled: true, RecommendationsTTL: time.Minute}, metrics, testLogger())
	return recommendationFixture{
		store:   store,
		ratings: NewRatingService(store, cache, metrics, testLogger()),
		recs:    NewRecommendationService(store, cache, metrics, testLogger()),
	}
}

func TestRecommendationService_NoRatings(t *testing.T) {
	f := newRecommendationFixture(t, nil)

	resp, cached, err := f.recs.GetRecommendations(context.Background())

	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotNil(t, resp.Red)
	assert.Empty(t, resp.Red)
	assert.Empty(t, resp.White)
	assert.Empty(t, resp.Sparkling)
	assert.Empty(t, resp.Other)
}

func TestRecommendationService_RanksUnratedWines(t *testing.T) {
	f := newRecommendationFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ratings.Rate(ctx, 1, 5))

	resp, _, err := f.recs.GetRecommendations(ctx)
	require.NoError(t, err)

	require.Len(t, resp.Red, 4)
	assert.Equal(t, int64(5), resp.Red[0].ID, "same grape, closest style")
	assert.Equal(t, "Opus One 2018", resp.Red[0].Name)
	assert.Equal(t, "Cabernet Sauvignon", resp.Red[0].Variety)
	assert.Equal(t, 3.8, resp.Red[0].Acidity)
	assert.Greater(t, resp.Red[0].Similarity, 0.9)
	for _, w := range resp.Red {
		assert.NotEqual(t, int64(1), w.ID, "rated wines are never recommended")
	}

	assert.Len(t, resp.White, 3)
	assert.Len(t, resp.Sparkling, 2)
	assert.Empty(t, resp.Other)
}

func TestRecommendationService_CachesUntilRatingsChange(t *testing.T) {
	f := newRecommendationFixture(t, newMemoryKV())
	ctx := context.Background()
	require.NoError(t, f.ratings.Rate(ctx, 1, 5))

	first, cached, err := f.recs.GetRecommendations(ctx)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := f.recs.GetRecommendations(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)

	require.NoError(t, f.ratings.Rate(ctx, 5, 1))
	third, cached, err := f.recs.GetRecommendations(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	for _, w := range third.Red {
		assert.NotEqual(t, int64(5), w.ID)
	}
}

func TestRecommendationService_StoreUnavailable(t *testing.T) {
	f := newRecommendationFixture(t, nil)
	require.NoError(t, f.store.Close())

	_, _, err := f.recs.GetRecommendations(context.Background())

	assert.ErrorIs(t, err, storage.ErrUnavailable)
}
