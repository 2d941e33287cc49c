// Package server exposes a db2json compatible query endpoint over a local
// database.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Defaults for Config.
const (
	DefaultAddr    = "127.0.0.1:8080"
	DefaultPath    = "/db2json"
	DefaultMaxRows = 10000
)

// Config holds configuration for the endpoint server.
type Config struct {
	Addr    string
	Path    string
	Driver  string
	DSN     string
	MaxRows int
	// Timeout bounds each statement; zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Server serves the query endpoint.
type Server struct {
	db     *sql.DB
	ownsDB bool
	addr   string
	path   string
	logger *slog.Logger
	query  *queryHandler
}

// New opens the configured backend and creates a server for it.
func New(ctx context.Context, cfg Config) (*Server, error) {
	db, err := OpenBackend(ctx, cfg.Driver, cfg.DSN, cfg.Logger)
	if err != nil {
		return nil, err
	}
	s := NewWithDB(db, cfg)
	s.ownsDB = true
	return s, nil
}

// NewWithDB creates a server over an open database. The caller keeps
// ownership of db.
func NewWithDB(db *sql.DB, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	maxRows := cfg.MaxRows
	if maxRows == 0 {
		maxRows = DefaultMaxRows
	}

	return &Server{
		db:     db,
		addr:   addr,
		path:   path,
		logger: logger,
		query:  &queryHandler{db: db, maxRows: maxRows, timeout: cfg.Timeout, logger: logger},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the HTTP handler with routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, s.path, s.query)
	r.Method(http.MethodPost, s.path, s.query)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting query endpoint", "addr", fmt.Sprintf("http://%s%s", ln.Addr(), s.path))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down query endpoint...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Close releases the database when the server opened it.
func (s *Server) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
