package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/result"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/segment"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input  string
	At     int
	All    bool
	Page   int
	Export string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{At: -1}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run statements against the query endpoint",
		Long: `Submit SQL statements to the configured db2json endpoint and render the
result sets.

SQL is read from the arguments, the --input file or piped stdin. By default
the first statement runs; --at selects the statement at a byte offset and
--all runs every statement. Successful statements are saved to history.

When invoked without input on a terminal, enters interactive REPL mode.`,
		Example: `  # Run a statement
  leapquery query "select * from qiws.qcustcdt"

  # Run the statement around byte offset 120 of a file
  leapquery query --input work.sql --at 120

  # Run every statement of a file as JSON
  leapquery query --input work.sql --all -o json

  # Copy a result as tab separated text
  leapquery query "select * from qiws.qcustcdt" --export tab | pbcopy

  # Interactive mode
  leapquery query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().IntVar(&opts.At, "at", -1, "Run the statement enclosing this byte offset")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Run every statement")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Show only this page of each table result")
	cmd.Flags().StringVar(&opts.Export, "export", "", "Write results delimited: tab, comma or pipe")

	_ = cmd.RegisterFlagCompletionFunc("export", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"tab", "comma", "pipe"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)

	var buffer string
	switch {
	case len(args) > 0:
		buffer = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		buffer = string(content)
	case !output.IsTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		buffer = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, cmdCtx)
	}

	spans := selectStatements(buffer, opts)
	if len(spans) == 0 {
		return errors.New("no statement selected")
	}

	c, err := cmdCtx.Client()
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var exportDelim result.Delimiter
	if opts.Export != "" {
		if exportDelim, err = result.ParseDelimiter(opts.Export); err != nil {
			return err
		}
	}

	var failed int
	for _, span := range spans {
		set, err := c.Submit(cmd.Context(), span.Text)
		if err != nil {
			printStatementError(cmdCtx.Renderer, buffer, span, err)
			failed++
			continue
		}
		saveHistory(cmd.Context(), cmdCtx, store, span.Text)

		if exportDelim != "" {
			err = result.WriteDelimited(cmd.OutOrStdout(), set.Columns, set.Rows, exportDelim)
		} else {
			err = renderSet(cmd.OutOrStdout(), cmdCtx.Cfg, set, opts.Page)
		}
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(spans))
	}
	return nil
}

// selectStatements picks the statements to run from buffer.
func selectStatements(buffer string, opts *QueryOptions) []segment.Span {
	if opts.All {
		return segment.SplitStatements(buffer)
	}
	at := max(opts.At, 0)
	if span := segment.StatementAt(buffer, at); !span.Empty() {
		return []segment.Span{span}
	}
	if opts.At < 0 {
		// the first statement may follow an empty one
		if spans := segment.SplitStatements(buffer); len(spans) > 0 {
			return spans[:1]
		}
	}
	return nil
}

func saveHistory(ctx context.Context, cmdCtx *CommandContext, store *state.SQLiteStore, stmt string) {
	if err := store.AddHistory(ctx, stmt); err != nil {
		cmdCtx.Logger.Warn("failed to save history", "error", err)
	}
}
