// Package state persists the console's statement history and settings in a
// local SQLite database.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// sqlite driver.
	_ "modernc.org/sqlite"
)

// DefaultMaxEntries is the number of history entries kept.
const DefaultMaxEntries = 640

var errNotOpened = errors.New("database not opened")

// SQLiteStore stores history and settings in SQLite.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	maxEntries int
	logger     *slog.Logger
}

// NewSQLiteStore creates a new store instance. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{maxEntries: DefaultMaxEntries, logger: logger}
}

// SetMaxEntries changes how many history entries are kept. Values below one
// restore the default.
func (s *SQLiteStore) SetMaxEntries(n int) {
	if n < 1 {
		n = DefaultMaxEntries
	}
	s.maxEntries = n
}

// MaxEntries returns the history cap.
func (s *SQLiteStore) MaxEntries() int {
	return s.maxEntries
}

// Open opens the database at path, creating its directory if needed.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state database opened", slog.String("path", path))
	return nil
}

// OpenAndMigrate opens the database at path and applies migrations.
func OpenAndMigrate(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
