package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver
)

// Opener opens a database for a DSN.
type Opener func(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

func init() {
	RegisterBackend("sqlite", openSQLite)
	RegisterBackend("postgres", openDriver("pgx"))
	RegisterBackend("pgx", openDriver("pgx"))
	RegisterBackend("duckdb", openDuckDB)
}

// RegisterBackend adds a backend opener to the registry.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns all registered backend names (sorted).
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenBackend opens and pings the named backend.
func OpenBackend(ctx context.Context, name, dsn string, logger *slog.Logger) (*sql.DB, error) {
	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, &UnknownBackendError{Name: name, Available: Backends()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := open(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return db, nil
}

// UnknownBackendError is returned when an unknown backend is requested.
type UnknownBackendError struct {
	Name      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q\nAvailable backends: %v\nHint: Check serve.driver in leapquery.yaml", e.Name, e.Available)
}

func openDriver(driver string) Opener {
	return func(_ context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
		logger.Debug("opening database", slog.String("driver", driver))
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
		}
		return db, nil
	}
}

// openSQLite opens a SQLite database. An empty DSN is an in-memory database.
func openSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := openDriver("sqlite")(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// openDuckDB opens a DuckDB database. An empty DSN is an in-memory database.
func openDuckDB(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	return openDriver("duckdb")(ctx, dsn, logger)
}
