package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/client"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext for cmd.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:      getConfig(),
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
}

// OpenStore opens the history database. The caller closes it.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	store, err := state.OpenAndMigrate(c.Cfg.History.Path, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if c.Cfg.History.MaxEntries > 0 {
		store.SetMaxEntries(c.Cfg.History.MaxEntries)
	}
	return store, nil
}

// Client creates an endpoint client from the configuration.
func (c *CommandContext) Client() (*client.Client, error) {
	if err := c.Cfg.RequireEndpoint(); err != nil {
		return nil, err
	}
	mode, err := client.ParseMode(c.Cfg.Mode)
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{
		Endpoint: c.Cfg.Endpoint,
		Mode:     mode,
		Timeout:  c.Cfg.Timeout,
		Logger:   c.Logger,
	})
}

// MaxWidth resolves the format width: configured width, then the width
// saved in the store, then the formatter default.
func (c *CommandContext) MaxWidth(ctx context.Context, store *state.SQLiteStore) int {
	if c.Cfg.Format.MaxWidth > 0 {
		return c.Cfg.Format.MaxWidth
	}
	if store != nil {
		saved, err := store.MaxWidth(ctx)
		if err != nil {
			c.Logger.Debug("failed to read saved width", "error", err)
		} else if saved > 0 {
			return saved
		}
	}
	return format.DefaultMaxWidth
}

// Formatter creates a formatter for the resolved width.
func (c *CommandContext) Formatter(ctx context.Context, store *state.SQLiteStore) *format.Formatter {
	return format.New(format.Options{MaxWidth: c.MaxWidth(ctx, store)})
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		Endpoint: os.Getenv(config.EnvPrefix + "ENDPOINT"),
		Mode:     config.DefaultMode,
		Timeout:  config.DefaultTimeout,
		Output:   config.DefaultOutput,
		PageSize: config.DefaultPageSize,
		History: config.HistoryConfig{
			Path:       ":memory:",
			MaxEntries: config.DefaultMaxEntries,
		},
		Serve: config.ServeConfig{
			Addr:    config.DefaultServeAddr,
			Driver:  config.DefaultServeDriver,
			MaxRows: config.DefaultServeRows,
		},
	}
}
