// Package sqlite provides a SQLite implementation of the LocalStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

// Value encodings stored alongside each row.
const (
	encodingPlain  = "plain"
	encodingSnappy = "snappy"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Store implements ports.LocalStore and ports.SchemaManager using a single
// key/value table.
type Store struct {
	db       *sql.DB
	path     string
	compress bool
}

// NewStore opens the SQLite database at cfg.Path.
func NewStore(cfg config.LocalConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Store{
		db:       db,
		path:     cfg.Path,
		compress: cfg.Compress,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		encoding TEXT NOT NULL DEFAULT 'plain',
		updated_at TIMESTAMP NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		raw      []byte
		encoding string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, encoding FROM kv WHERE key = ?`, key,
	).Scan(&raw, &encoding)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying key %s: %w", key, err)
	}

	value, err := decode(raw, encoding)
	if err != nil {
		return "", false, fmt.Errorf("decoding key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	raw, encoding := []byte(value), encodingPlain
	if s.compress {
		raw, encoding = snappy.Encode(nil, raw), encodingSnappy
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, encoding, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encoding = excluded.encoding,
			updated_at = excluded.updated_at
	`, key, raw, encoding, timeNow().UTC())
	if err != nil {
		return fmt.Errorf("storing key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func decode(raw []byte, encoding string) (string, error) {
	switch encoding {
	case encodingPlain, "":
		return string(raw), nil
	case encodingSnappy:
		out, err := snappy.Decode(nil, raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown encoding %q", encoding)
	}
}
