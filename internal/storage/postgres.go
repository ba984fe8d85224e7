package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/temcen/cellar/pkg/models"
)

// PGXPool is the subset of *pgxpool.Pool used by PostgresStore. It is also
// implemented by pgxmock.
type PGXPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS wines (
		id SERIAL PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		variety VARCHAR(100),
		variety_sub1 VARCHAR(100),
		variety_sub2 VARCHAR(100),
		vintage INTEGER,
		wine_type VARCHAR(50),
		price BIGINT,
		acidity DOUBLE PRECISION,
		tannin DOUBLE PRECISION,
		body DOUBLE PRECISION,
		sweetness DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wines_name ON wines (name)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		id SERIAL PRIMARY KEY,
		wine_id INTEGER NOT NULL UNIQUE REFERENCES wines (id) ON DELETE CASCADE,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		rated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_preferences_rated_at ON user_preferences (rated_at DESC)`,
}

const pgWineColumns = `w.id, w.name, w.vintage, COALESCE(w.variety, ''), COALESCE(w.variety_sub1, ''),
	COALESCE(w.variety_sub2, ''), COALESCE(w.price, 0), COALESCE(w.wine_type, ''),
	w.acidity, w.tannin, w.body, w.sweetness`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool PGXPool
}

func NewPostgresStore(pool PGXPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Driver() string { return "postgres" }

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return unavailable("migrate", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CountWines(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wines`).Scan(&n); err != nil {
		return 0, unavailable("count wines", err)
	}
	return n, nil
}

func (s *PostgresStore) GetWine(ctx context.Context, id int64) (*models.Wine, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgWineColumns+` FROM wines w WHERE w.id = $1`, id)
	wine, err := scanWine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get wine", err)
	}
	return wine, nil
}

func (s *PostgresStore) ListWines(ctx context.Context) ([]models.Wine, error) {
	return s.queryWines(ctx, "list wines", `SELECT `+pgWineColumns+` FROM wines w ORDER BY w.id`)
}

func (s *PostgresStore) SearchWinesByName(ctx context.Context, pattern string, limit int) ([]models.Wine, error) {
	return s.queryWines(ctx, "search wines by name",
		`SELECT `+pgWineColumns+` FROM wines w
		WHERE w.name ILIKE $1 ESCAPE '\'
		ORDER BY w.id LIMIT $2`, pattern, limit)
}

func (s *PostgresStore) SearchWinesByVariety(ctx context.Context, pattern string, limit int) ([]models.Wine, error) {
	return s.queryWines(ctx, "search wines by variety",
		`SELECT `+pgWineColumns+` FROM wines w
		WHERE w.variety ILIKE $1 ESCAPE '\'
			OR w.variety_sub1 ILIKE $1 ESCAPE '\'
			OR w.variety_sub2 ILIKE $1 ESCAPE '\'
		ORDER BY w.id LIMIT $2`, pattern, limit)
}

func (s *PostgresStore) queryWines(ctx context.Context, op, query string, args ...any) ([]models.Wine, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	wines := make([]models.Wine, 0)
	for rows.Next() {
		wine, err := scanWine(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		wines = append(wines, *wine)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return wines, nil
}

func (s *PostgresStore) InsertWines(ctx context.Context, wines []models.Wine) ([]models.Wine, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("insert wines", err)
	}
	defer tx.Rollback(ctx)

	stored := make([]models.Wine, 0, len(wines))
	for _, w := range wines {
		err := tx.QueryRow(ctx, `
			INSERT INTO wines (name, variety, variety_sub1, variety_sub2, vintage, wine_type, price,
				acidity, tannin, body, sweetness)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			w.Name, nullString(w.Variety), nullString(w.VarietySub1), nullString(w.VarietySub2),
			w.Vintage, nullString(w.WineType), w.Price,
			w.Acidity, w.Tannin, w.Body, w.Sweetness,
		).Scan(&w.ID)
		if err != nil {
			return nil, unavailable(fmt.Sprintf("insert wine %q", w.Name), err)
		}
		stored = append(stored, w)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("insert wines", err)
	}
	return stored, nil
}

func (s *PostgresStore) ClearCatalog(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("clear catalog", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_preferences`); err != nil {
		return unavailable("clear ratings", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM wines`); err != nil {
		return unavailable("clear wines", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("clear catalog", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSweetness(ctx context.Context, values map[int64]float64) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("update sweetness", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range sortedIDs(values) {
		if _, err := tx.Exec(ctx, `UPDATE wines SET sweetness = $1 WHERE id = $2`, values[id], id); err != nil {
			return unavailable("update sweetness", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("update sweetness", err)
	}
	return nil
}

func (s *PostgresStore) ListRatings(ctx context.Context) ([]models.RatingWithWine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.rating, p.rated_at, `+pgWineColumns+`
		FROM user_preferences p
		JOIN wines w ON w.id = p.wine_id
		ORDER BY p.rated_at DESC, p.id DESC`)
	if err != nil {
		return nil, unavailable("list ratings", err)
	}
	defer rows.Close()

	ratings := make([]models.RatingWithWine, 0)
	for rows.Next() {
		var r models.RatingWithWine
		dest := append([]any{&r.Rating.Rating, &r.RatedAt}, wineDest(&r.Wine)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, unavailable("list ratings", err)
		}
		r.WineID = r.Wine.ID
		r.RatedAt = r.RatedAt.UTC()
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list ratings", err)
	}
	return ratings, nil
}

func (s *PostgresStore) UpsertRating(ctx context.Context, wineID int64, rating int, ratedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_preferences (wine_id, rating, rated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wine_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			rated_at = EXCLUDED.rated_at`,
		wineID, rating, ratedAt.UTC())
	if err != nil {
		return unavailable("upsert rating", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRating(ctx context.Context, wineID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_preferences WHERE wine_id = $1`, wineID)
	if err != nil {
		return unavailable("delete rating", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
