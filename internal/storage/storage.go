// Package storage persists the wine catalog and the rating history.
//
// Two backends implement Store: PostgreSQL through a pgx pool and SQLite
// through modernc.org/sqlite. Errors caused by the backend itself wrap
// ErrUnavailable so callers can tell "the store is down" apart from
// ErrNotFound and from empty results.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/temcen/cellar/pkg/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is the persistence contract used by the services.
type Store interface {
	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	// Driver names the backend ("postgres" or "sqlite").
	Driver() string

	CountWines(ctx context.Context) (int, error)
	GetWine(ctx context.Context, id int64) (*models.Wine, error)
	ListWines(ctx context.Context) ([]models.Wine, error)
	// SearchWinesByName matches the name against a LIKE pattern, case
	// insensitively. Backslash escapes % and _ in the pattern.
	SearchWinesByName(ctx context.Context, pattern string, limit int) ([]models.Wine, error)
	// SearchWinesByVariety matches any of the three varieties.
	SearchWinesByVariety(ctx context.Context, pattern string, limit int) ([]models.Wine, error)
	// InsertWines stores new catalog entries and returns them with their ids.
	InsertWines(ctx context.Context, wines []models.Wine) ([]models.Wine, error)
	// ClearCatalog removes every rating and every wine.
	ClearCatalog(ctx context.Context) error
	// UpdateSweetness overwrites the sweetness of the given wines in one
	// transaction.
	UpdateSweetness(ctx context.Context, values map[int64]float64) error

	// ListRatings returns the rating history, most recent first.
	ListRatings(ctx context.Context) ([]models.RatingWithWine, error)
	// UpsertRating creates or overwrites the rating of a wine.
	UpsertRating(ctx context.Context, wineID int64, rating int, ratedAt time.Time) error
	// DeleteRating removes the rating of a wine, or returns ErrNotFound.
	DeleteRating(ctx context.Context, wineID int64) error
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
