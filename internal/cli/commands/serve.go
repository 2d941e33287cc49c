package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapquery/internal/server"
	"github.com/leapstack-labs/leapquery/pkg/segment"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command. Address, driver, DSN
// and row limit are read through the config as serve.*.
type ServeOptions struct {
	Init string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local db2json endpoint",
		Long: `Start an HTTP endpoint that answers statements in the db2json envelope
format from a local database. Point leapquery at it to work without a
remote server.

Supported drivers: sqlite, duckdb, postgres (pgx).`,
		Example: `  # In-memory SQLite seeded from a script
  leapquery serve --init seed.sql

  # DuckDB file on a custom address
  leapquery serve --driver duckdb --dsn warehouse.duckdb --addr :9090

  # Postgres
  leapquery serve --driver postgres --dsn "$DATABASE_URL"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: "+server.DefaultAddr+")")
	cmd.Flags().String("driver", "", "Database driver")
	cmd.Flags().String("dsn", "", "Database connection string")
	cmd.Flags().Int("max-rows", 0, "Maximum rows returned per statement")
	cmd.Flags().StringVar(&opts.Init, "init", "", "Run the statements of this file before serving")

	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return server.Backends(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg.Serve

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenBackend(ctx, cfg.Driver, cfg.DSN, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if opts.Init != "" {
		n, err := runInitScript(ctx, db, opts.Init)
		if err != nil {
			return err
		}
		cmdCtx.Logger.Info("init script applied", "file", opts.Init, "statements", n)
	}

	srv := server.NewWithDB(db, server.Config{
		Addr:    cfg.Addr,
		MaxRows: cfg.MaxRows,
		Timeout: cfg.Timeout,
		Logger:  cmdCtx.Logger,
	})

	s := cmdCtx.Renderer.Styles()
	cmdCtx.Renderer.Printf("Serving %s on %s\n",
		s.Bold.Render(cfg.Driver),
		s.Info.Render(fmt.Sprintf("http://%s%s", srv.Addr(), server.DefaultPath)))
	cmdCtx.Renderer.Println(s.Muted.Render("Press Ctrl+C to stop"))

	return srv.Serve(ctx)
}

// runInitScript executes every statement of path against db.
func runInitScript(ctx context.Context, db *sql.DB, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read init script: %w", err)
	}
	spans := segment.SplitStatements(string(content))
	for i, span := range spans {
		if _, err := db.ExecContext(ctx, span.Text); err != nil {
			return i, fmt.Errorf("init statement %d failed: %w", i+1, err)
		}
	}
	return len(spans), nil
}
