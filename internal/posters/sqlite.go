package posters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS posters (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	creator    INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	stopped    INTEGER NOT NULL DEFAULT 0,
	lockout    INTEGER NOT NULL DEFAULT 0,
	servable   INTEGER GENERATED ALWAYS AS (stopped = 0 AND lockout = 0) VIRTUAL
);
CREATE INDEX IF NOT EXISTS idx_posters_creator ON posters(creator);

CREATE TABLE IF NOT EXISTS poster_images (
	poster INTEGER NOT NULL REFERENCES posters(id) ON DELETE CASCADE,
	kind   TEXT NOT NULL,
	url    TEXT NOT NULL,
	PRIMARY KEY (poster, kind)
);
`

// SQLiteStore is a SQLite-backed poster store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) a SQLite poster store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("poster store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open poster store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping poster store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init poster store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SelectRandomServable picks one servable poster id at random
func (s *SQLiteStore) SelectRandomServable(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM posters WHERE servable ORDER BY RANDOM() LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select random servable poster: %w", err)
	}
	return id, true, nil
}

// ImageURL returns the poster's image URL for one texture channel
func (s *SQLiteStore) ImageURL(ctx context.Context, id int64, kind Kind) (string, bool, error) {
	var url string
	err := s.db.QueryRowContext(ctx,
		`SELECT url FROM poster_images WHERE poster = ? AND kind = ?`,
		id, string(kind),
	).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select poster image url: %w", err)
	}
	return url, true, nil
}

// CreatePoster inserts a new poster owned by creator
func (s *SQLiteStore) CreatePoster(ctx context.Context, creator int64) (*Poster, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posters (creator, created_at) VALUES (?, ?)`,
		creator, now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert poster: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("poster insert id: %w", err)
	}
	return &Poster{
		ID:        id,
		Creator:   creator,
		CreatedAt: now,
		Servable:  true,
	}, nil
}

// GetPoster returns one poster scoped to its creator
func (s *SQLiteStore) GetPoster(ctx context.Context, creator, id int64) (*Poster, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, creator, created_at, stopped, lockout, servable
		 FROM posters WHERE id = ? AND creator = ?`,
		id, creator,
	)
	p, err := scanPoster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select poster: %w", err)
	}
	return p, true, nil
}

// PostersByCreator lists a creator's posters, newest first
func (s *SQLiteStore) PostersByCreator(ctx context.Context, creator int64) ([]Poster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, creator, created_at, stopped, lockout, servable
		 FROM posters WHERE creator = ? ORDER BY id DESC`,
		creator,
	)
	if err != nil {
		return nil, fmt.Errorf("select posters by creator: %w", err)
	}
	defer rows.Close()

	var out []Poster
	for rows.Next() {
		p, err := scanPoster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poster: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posters: %w", err)
	}
	return out, nil
}

// SetStopped updates the stopped flag of a creator's poster
func (s *SQLiteStore) SetStopped(ctx context.Context, creator, id int64, stopped bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posters SET stopped = ? WHERE id = ? AND creator = ?`,
		stopped, id, creator,
	)
	if err != nil {
		return false, fmt.Errorf("update poster stopped flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("poster update rows affected: %w", err)
	}
	return n > 0, nil
}

// SetImageURL inserts or replaces the image URL for one texture channel
func (s *SQLiteStore) SetImageURL(ctx context.Context, id int64, kind Kind, url string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown texture kind %q", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poster_images (poster, kind, url) VALUES (?, ?, ?)
		 ON CONFLICT (poster, kind) DO UPDATE SET url = excluded.url`,
		id, string(kind), url,
	)
	if err != nil {
		return fmt.Errorf("upsert poster image: %w", err)
	}
	return nil
}

// Ping verifies the store is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoster(row rowScanner) (*Poster, error) {
	var (
		p         Poster
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Creator, &createdAt, &p.Stopped, &p.Lockout, &p.Servable); err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &p, nil
}
