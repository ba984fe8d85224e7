package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/pkg/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cellar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, "sqlite", store.Driver())
}

func TestSQLiteStore_SeedAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	seeded, err := SeedIfEmpty(ctx, store)
	require.NoError(t, err)
	require.Len(t, seeded, 10)

	again, err := SeedIfEmpty(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, again, "a populated catalog is left alone")

	n, err := store.CountWines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	wine, err := store.GetWine(ctx, seeded[3].ID)
	require.NoError(t, err)
	assert.Equal(t, "甲州", wine.Variety)
	assert.Equal(t, "white", wine.WineType)
	assert.Equal(t, int64(2500), wine.Price)
	require.NotNil(t, wine.Vintage)
	assert.Equal(t, 2022, *wine.Vintage)
	assert.Equal(t, 3.8, *wine.Acidity)
	assert.Empty(t, wine.VarietySub1)

	_, err = store.GetWine(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_NullAttributes(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	stored, err := store.InsertWines(ctx, []models.Wine{{Name: "Mystery bottle", Acidity: f64(3)}})
	require.NoError(t, err)

	wine, err := store.GetWine(ctx, stored[0].ID)
	require.NoError(t, err)
	assert.Nil(t, wine.Vintage)
	assert.Nil(t, wine.Body)
	assert.Equal(t, int64(0), wine.Price)
	assert.Equal(t, "", wine.WineType)
	assert.Equal(t, 3.0, *wine.Acidity)
}

func TestSQLiteStore_Search(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := SeedIfEmpty(ctx, store)
	require.NoError(t, err)
	_, err = store.InsertWines(ctx, []models.Wine{
		{Name: "100% Grenache", Variety: "Grenache", VarietySub1: "Syrah"},
		{Name: "Côtes du Rhône", Variety: "Grenache", VarietySub2: "Mourvèdre"},
	})
	require.NoError(t, err)

	byName, err := store.SearchWinesByName(ctx, "%opus%", 10)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Opus One 2018", byName[0].Name)

	literal, err := store.SearchWinesByName(ctx, `%100\%%`, 10)
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "100% Grenache", literal[0].Name)

	bySub, err := store.SearchWinesByVariety(ctx, "%mourv%", 10)
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	assert.Equal(t, "Côtes du Rhône", bySub[0].Name)

	limited, err := store.SearchWinesByVariety(ctx, "%grenache%", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_Ratings(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	seeded, err := SeedIfEmpty(ctx, store)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpsertRating(ctx, seeded[0].ID, 5, base))
	require.NoError(t, store.UpsertRating(ctx, seeded[2].ID, 4, base.Add(time.Minute)))

	ratings, err := store.ListRatings(ctx)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, seeded[2].ID, ratings[0].WineID, "most recent first")
	assert.Equal(t, base.Add(time.Minute), ratings[0].RatedAt)
	assert.Equal(t, "Sauvignon Blanc", ratings[0].Wine.Variety)

	// re-rating overwrites score and timestamp but keeps one row per wine
	require.NoError(t, store.UpsertRating(ctx, seeded[0].ID, 2, base.Add(time.Hour)))
	ratings, err = store.ListRatings(ctx)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, seeded[0].ID, ratings[0].WineID)
	assert.Equal(t, 2, ratings[0].Rating.Rating)

	require.NoError(t, store.DeleteRating(ctx, seeded[0].ID))
	assert.ErrorIs(t, store.DeleteRating(ctx, seeded[0].ID), ErrNotFound)

	ratings, err = store.ListRatings(ctx)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestSQLiteStore_RatingRequiresExistingWine(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.UpsertRating(context.Background(), 12345, 3, time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSQLiteStore_UpdateSweetnessAndClear(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	seeded, err := SeedIfEmpty(ctx, store)
	require.NoError(t, err)
	require.NoError(t, store.UpsertRating(ctx, seeded[0].ID, 5, time.Now()))

	require.NoError(t, store.UpdateSweetness(ctx, map[int64]float64{seeded[1].ID: 3}))
	wine, err := store.GetWine(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, *wine.Sweetness)

	require.NoError(t, store.ClearCatalog(ctx))
	n, err := store.CountWines(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	ratings, err := store.ListRatings(ctx)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}
