// Package store persists resume progress, the provider preference and
// watch history in one SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"vidframe/internal/media"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: not found")

const providerKey = "provider"

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the configuration used by the CLI and server.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// dsn builds a file: URI. The path is escaped so '?', '#' and '%' in it
// stay part of the file name.
func dsn(dbPath string, cfg Config) string {
	query := fmt.Sprintf("_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.BusyTimeout.Milliseconds())
	u := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: filepath.ToSlash(dbPath)}).EscapedPath(),
		RawQuery: query,
	}
	return u.String()
}

// Store is the SQLite-backed progress and preference store.
type Store struct {
	db *sql.DB
}

// Open creates the database directory if needed, opens the pool with WAL
// and busy_timeout applied to every connection, and runs migrations.
func Open(dbPath string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// DB returns the underlying pool for packages sharing the database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS progress (
		series_id TEXT PRIMARY KEY,
		season TEXT NOT NULL,
		episode TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL CHECK(kind IN ('movie', 'series')),
		catalog_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		season TEXT NOT NULL DEFAULT '',
		episode TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		watched_at TEXT NOT NULL,
		UNIQUE (kind, catalog_id, season, episode)
	);

	CREATE INDEX IF NOT EXISTS idx_history_watched_at ON history(watched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Provider returns the stored provider preference.
func (s *Store) Provider(ctx context.Context) (string, bool, error) {
	v, err := s.Get(ctx, providerKey)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SaveProvider stores the provider preference.
func (s *Store) SaveProvider(ctx context.Context, id string) error {
	return s.Set(ctx, providerKey, id)
}

// Progress returns the stored position of a series.
func (s *Store) Progress(ctx context.Context, seriesID string) (media.ProgressRecord, bool, error) {
	rec := media.ProgressRecord{SeriesID: seriesID}
	err := s.db.QueryRowContext(ctx,
		`SELECT season, episode FROM progress WHERE series_id = ?`, seriesID,
	).Scan(&rec.Season, &rec.Episode)
	if errors.Is(err, sql.ErrNoRows) {
		return media.ProgressRecord{}, false, nil
	}
	if err != nil {
		return media.ProgressRecord{}, false, fmt.Errorf("reading progress: %w", err)
	}
	return rec, true, nil
}

// SaveProgress upserts the position of a series.
func (s *Store) SaveProgress(ctx context.Context, rec media.ProgressRecord) error {
	if rec.SeriesID == "" {
		return fmt.Errorf("%w: progress without series id", media.ErrInvalidRef)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO progress (series_id, season, episode, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(series_id) DO UPDATE SET
		season = excluded.season,
		episode = excluded.episode,
		updated_at = excluded.updated_at
	`, rec.SeriesID, rec.Season, rec.Episode, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}
