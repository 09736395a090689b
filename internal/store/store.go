// Package store persists scraped places in SQLite.
//
// The places table keeps the layout written by earlier versions of the
// scraper: one row per place id, data holding the zlib-compressed JSON of the
// place. Databases created by those versions open unchanged and are migrated
// forward in place.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"placesweep/internal/logging"
)

// ErrNotFound is returned when a place id is not in the store.
var ErrNotFound = errors.New("place not found")

// Store wraps the SQLite database holding places and sweep runs.
type Store struct {
	db     *sql.DB
	driver string
	path   string
}

// Open opens (creating if needed) the database at path using driver
// "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
func Open(driver, path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store driver=%s path=%s", driver, path)

	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func buildDSN(driver, path string) (string, error) {
	switch driver {
	case "sqlite3":
		if path == ":memory:" {
			return path, nil
		}
		return path + "?_journal_mode=WAL&_busy_timeout=5000", nil
	case "sqlite":
		if path == ":memory:" {
			return path, nil
		}
		return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	placesTable := `
	CREATE TABLE IF NOT EXISTS places(
		place_id TEXT,
		data BLOB,
		UNIQUE(place_id)
	);
	`

	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		bbox TEXT NOT NULL,
		skip_to TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		requests INTEGER NOT NULL DEFAULT 0,
		encountered INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		resume_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	for _, table := range []string{placesTable, runsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
