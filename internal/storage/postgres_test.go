package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/cellar/pkg/models"
)

var wineColumnNames = []string{
	"id", "name", "vintage", "variety", "variety_sub1", "variety_sub2",
	"price", "wine_type", "acidity", "tannin", "body", "sweetness",
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int { return &v }

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS wines").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_wines_name").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_preferences").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_user_preferences_rated_at").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWine(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)

		rows := pgxmock.NewRows(wineColumnNames).
			AddRow(int64(1), "Château Margaux 2015", intp(2015), "Cabernet Sauvignon", "", "",
				int64(120000), "red", f64(3.5), f64(4.0), f64(5.0), f64(2.0))
		mock.ExpectQuery("SELECT (.+) FROM wines w WHERE w.id =").
			WithArgs(int64(1)).
			WillReturnRows(rows)

		wine, err := store.GetWine(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), wine.ID)
		assert.Equal(t, "Cabernet Sauvignon", wine.Variety)
		assert.Equal(t, 2015, *wine.Vintage)
		assert.Equal(t, 5.0, *wine.Body)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM wines w WHERE w.id =").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(wineColumnNames))

		_, err := store.GetWine(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend failure", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM wines").
			WithArgs(int64(1)).
			WillReturnError(errors.New("connection refused"))

		_, err := store.GetWine(context.Background(), 1)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStore_SearchWinesByName(t *testing.T) {
	store, mock := newMockStore(t)

	rows := pgxmock.NewRows(wineColumnNames).
		AddRow(int64(5), "Opus One 2018", intp(2018), "Cabernet Sauvignon", "", "",
			int64(45000), "red", f64(3.8), f64(4.5), f64(5.0), f64(1.5))
	mock.ExpectQuery("WHERE w.name ILIKE").
		WithArgs("%opus%", 10).
		WillReturnRows(rows)

	wines, err := store.SearchWinesByName(context.Background(), "%opus%", 10)
	require.NoError(t, err)
	require.Len(t, wines, 1)
	assert.Equal(t, "Opus One 2018", wines[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// insertWineArgs matches the eleven insert parameters, pinning the name.
func insertWineArgs(w models.Wine) []any {
	args := []any{w.Name}
	for range 10 {
		args = append(args, pgxmock.AnyArg())
	}
	return args
}

func TestPostgresStore_InsertWines(t *testing.T) {
	store, mock := newMockStore(t)
	wines := SampleWines()[:2]

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO wines").
		WithArgs(insertWineArgs(wines[0])...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("INSERT INTO wines").
		WithArgs(insertWineArgs(wines[1])...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	stored, err := store.InsertWines(context.Background(), wines)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(11), stored[0].ID)
	assert.Equal(t, int64(12), stored[1].ID)
	assert.Equal(t, wines[1].Name, stored[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertWines_RollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	wines := SampleWines()[:1]

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO wines").
		WithArgs(insertWineArgs(wines[0])...).
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	_, err := store.InsertWines(context.Background(), wines)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSweetness(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wines SET sweetness").WithArgs(3.0, int64(2)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE wines SET sweetness").WithArgs(5.0, int64(7)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.UpdateSweetness(context.Background(), map[int64]float64{7: 5.0, 2: 3.0})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRatings(t *testing.T) {
	store, mock := newMockStore(t)
	ratedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	columns := append([]string{"rating", "rated_at"}, wineColumnNames...)
	rows := pgxmock.NewRows(columns).
		AddRow(5, ratedAt, int64(1), "Château Margaux 2015", intp(2015), "Cabernet Sauvignon", "", "",
			int64(120000), "red", f64(3.5), f64(4.0), f64(5.0), f64(2.0)).
		AddRow(2, ratedAt.Add(-time.Hour), int64(3), "Cloudy Bay Sauvignon Blanc 2022", intp(2022), "Sauvignon Blanc", "", "",
			int64(4000), "white", f64(4.5), f64(1.0), nil, f64(1.5))
	mock.ExpectQuery("FROM user_preferences p").WillReturnRows(rows)

	ratings, err := store.ListRatings(context.Background())
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	assert.Equal(t, models.Rating{WineID: 1, Rating: 5, RatedAt: ratedAt}, ratings[0].Rating)
	assert.Equal(t, int64(3), ratings[1].WineID)
	assert.Nil(t, ratings[1].Wine.Body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRating(t *testing.T) {
	store, mock := newMockStore(t)
	ratedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("ON CONFLICT \\(wine_id\\) DO UPDATE").
		WithArgs(int64(4), 3, ratedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertRating(context.Background(), 4, 3, ratedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRating(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "existing rating", affected: 1},
		{name: "no rating", affected: 0, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectExec("DELETE FROM user_preferences WHERE wine_id").
				WithArgs(int64(9)).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			err := store.DeleteRating(context.Background(), 9)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
