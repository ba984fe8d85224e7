package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/temcen/cellar/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS wines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	variety TEXT,
	variety_sub1 TEXT,
	variety_sub2 TEXT,
	vintage INTEGER,
	wine_type TEXT,
	price INTEGER,
	acidity REAL,
	tannin REAL,
	body REAL,
	sweetness REAL
);

CREATE INDEX IF NOT EXISTS idx_wines_name ON wines (name);

CREATE TABLE IF NOT EXISTS user_preferences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	wine_id INTEGER NOT NULL UNIQUE REFERENCES wines (id) ON DELETE CASCADE,
	rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	rated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_preferences_rated_at ON user_preferences (rated_at DESC);
`

const sqliteWineColumns = `w.id, w.name, w.vintage, COALESCE(w.variety, ''), COALESCE(w.variety_sub1, ''),
	COALESCE(w.variety_sub2, ''), COALESCE(w.price, 0), COALESCE(w.wine_type, ''),
	w.acidity, w.tannin, w.body, w.sweetness`

// SQLiteStore implements Store on a single SQLite file. Timestamps are kept
// as Unix nanoseconds.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer, and the pragmas below are per connection.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Driver() string { return "sqlite" }

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) CountWines(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM wines`).Scan(&n); err != nil {
		return 0, unavailable("count wines", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetWine(ctx context.Context, id int64) (*models.Wine, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+sqliteWineColumns+` FROM wines w WHERE w.id = ?`, id)
	wine, err := scanWine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get wine", err)
	}
	return wine, nil
}

func (s *SQLiteStore) ListWines(ctx context.Context) ([]models.Wine, error) {
	return s.queryWines(ctx, "list wines", `SELECT `+sqliteWineColumns+` FROM wines w ORDER BY w.id`)
}

// SQLite's LIKE is case-insensitive for ASCII letters only, which matches
// what the name search needs.
func (s *SQLiteStore) SearchWinesByName(ctx context.Context, pattern string, limit int) ([]models.Wine, error) {
	return s.queryWines(ctx, "search wines by name",
		`SELECT `+sqliteWineColumns+` FROM wines w
		WHERE w.name LIKE ? ESCAPE '\'
		ORDER BY w.id LIMIT ?`, pattern, limit)
}

func (s *SQLiteStore) SearchWinesByVariety(ctx context.Context, pattern string, limit int) ([]models.Wine, error) {
	return s.queryWines(ctx, "search wines by variety",
		`SELECT `+sqliteWineColumns+` FROM wines w
		WHERE w.variety LIKE ?1 ESCAPE '\'
			OR w.variety_sub1 LIKE ?1 ESCAPE '\'
			OR w.variety_sub2 LIKE ?1 ESCAPE '\'
		ORDER BY w.id LIMIT ?2`, pattern, limit)
}

func (s *SQLiteStore) queryWines(ctx context.Context, op, query string, args ...any) ([]models.Wine, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) InsertWines(ctx context.Context, wines []models.Wine) ([]models.Wine, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("insert wines", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wines (name, variety, variety_sub1, variety_sub2, vintage, wine_type, price,
			acidity, tannin, body, sweetness)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, unavailable("insert wines", err)
	}
	defer stmt.Close()

	stored := make([]models.Wine, 0, len(wines))
	for _, w := range wines {
		res, err := stmt.ExecContext(ctx,
			w.Name, nullString(w.Variety), nullString(w.VarietySub1), nullString(w.VarietySub2),
			w.Vintage, nullString(w.WineType), w.Price,
			w.Acidity, w.Tannin, w.Body, w.Sweetness,
		)
		if err != nil {
			return nil, unavailable(fmt.Sprintf("insert wine %q", w.Name), err)
		}
		if w.ID, err = res.LastInsertId(); err != nil {
			return nil, unavailable("insert wines", err)
		}
		stored = append(stored, w)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("insert wines", err)
	}
	return stored, nil
}

func (s *SQLiteStore) ClearCatalog(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("clear catalog", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_preferences`); err != nil {
		return unavailable("clear ratings", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM wines`); err != nil {
		return unavailable("clear wines", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("clear catalog", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSweetness(ctx context.Context, values map[int64]float64) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("update sweetness", err)
	}
	defer tx.Rollback()

	for _, id := range sortedIDs(values) {
		if _, err := tx.ExecContext(ctx, `UPDATE wines SET sweetness = ? WHERE id = ?`, values[id], id); err != nil {
			return unavailable("update sweetness", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("update sweetness", err)
	}
	return nil
}

func (s *SQLiteStore) ListRatings(ctx context.Context) ([]models.RatingWithWine, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT p.rating, p.rated_at, `+sqliteWineColumns+`
		FROM user_preferences p
		JOIN wines w ON w.id = p.wine_id
		ORDER BY p.rated_at DESC, p.id DESC`)
	if err != nil {
		return nil, unavailable("list ratings", err)
	}
	defer rows.Close()

	ratings := make([]models.RatingWithWine, 0)
	for rows.Next() {
		var (
			r       models.RatingWithWine
			ratedAt int64
		)
		dest := append([]any{&r.Rating.Rating, &ratedAt}, wineDest(&r.Wine)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, unavailable("list ratings", err)
		}
		r.WineID = r.Wine.ID
		r.RatedAt = time.Unix(0, ratedAt).UTC()
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list ratings", err)
	}
	return ratings, nil
}

func (s *SQLiteStore) UpsertRating(ctx context.Context, wineID int64, rating int, ratedAt time.Time) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO user_preferences (wine_id, rating, rated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (wine_id) DO UPDATE SET
			rating = excluded.rating,
			rated_at = excluded.rated_at`,
		wineID, rating, ratedAt.UnixNano())
	if err != nil {
		return unavailable("upsert rating", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRating(ctx context.Context, wineID int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM user_preferences WHERE wine_id = ?`, wineID)
	if err != nil {
		return unavailable("delete rating", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete rating", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
