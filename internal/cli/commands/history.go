package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the statement history",
		Long: `List, edit, import and export the statements saved by successful queries.

History is kept newest first and capped at history.max_entries entries.
Statements that differ only in case or spacing outside quoted literals are
stored once.`,
	}

	cmd.PersistentFlags().Int("max-entries", 0, "Number of history entries kept")

	cmd.AddCommand(
		newHistoryListCommand(),
		newHistoryClearCommand(),
		newHistoryDedupeCommand(),
		newHistoryEditCommand(),
		newHistoryImportCommand(),
		newHistoryExportCommand(),
	)
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.History(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}
			if len(entries) == 0 {
				cmdCtx.Renderer.Println(cmdCtx.Renderer.Styles().Muted.Render("(history is empty)"))
				return nil
			}
			muted := cmdCtx.Renderer.Styles().Muted
			for i, e := range entries {
				cmdCtx.Renderer.Printf("%s %s\n", muted.Render(fmt.Sprintf("%3d", i+1)), oneLine(e.Statement))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries")
	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Println(cmdCtx.Renderer.Styles().Success.Render("History cleared"))
			return nil
		},
	}
}

func newHistoryDedupeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Remove older entries that repeat a newer one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.DedupeHistory(cmd.Context())
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Printf("Removed %d duplicate entries\n", n)
			return nil
		},
	}
}

func newHistoryEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the whole history in $EDITOR",
		Long: `Open the history in $EDITOR as semicolon terminated statements. On save,
the history is replaced by the statements of the file, the first statement
becoming the newest entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			ctx := cmd.Context()
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stmts, err := store.Statements(ctx)
			if err != nil {
				return err
			}

			tmp, err := os.CreateTemp("", "leapquery-history-*.sql")
			if err != nil {
				return err
			}
			defer func() { _ = os.Remove(tmp.Name()) }()
			if _, err := tmp.WriteString(state.EditText(stmts) + "\n"); err != nil {
				_ = tmp.Close()
				return err
			}
			if err := tmp.Close(); err != nil {
				return err
			}

			argv := append(editorCommand(), tmp.Name())
			// #nosec G204 -- the editor comes from the user's environment
			editCmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
			editCmd.Stdin = os.Stdin
			editCmd.Stdout = os.Stdout
			editCmd.Stderr = os.Stderr
			if err := editCmd.Run(); err != nil {
				return fmt.Errorf("editor failed: %w", err)
			}

			edited, err := os.ReadFile(tmp.Name())
			if err != nil {
				return err
			}
			n, err := store.ReplaceHistory(ctx, string(edited))
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Printf("History saved (%d entries)\n", n)
			return nil
		},
	}
}

// editorCommand returns the user's editor command line.
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

func newHistoryImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the history from an exported file",
		Long: `Replace the history with the statements of a file. The file may hold a
JSON array of statements, a single JSON string, or semicolon separated
statements. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			var (
				raw []byte
				err error
			)
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.ImportLegacy(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Printf("Imported %d entries\n", n)
			return nil
		},
	}
}

func newHistoryExportCommand() *cobra.Command {
	var exportFormat string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.History(cmd.Context())
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), entries, exportFormat)
		},
	}
	cmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, yaml or sql")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml", "sql"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// writeHistory writes entries in an export format. The json form is a
// plain array of statements so it can be imported again.
func writeHistory(w io.Writer, entries []state.Entry, exportFormat string) error {
	stmts := make([]string, len(entries))
	for i, e := range entries {
		stmts[i] = e.Statement
	}

	switch strings.ToLower(exportFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stmts)
	case "yaml", "yml":
		if entries == nil {
			entries = []state.Entry{}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "sql":
		if len(stmts) == 0 {
			return nil
		}
		_, err := fmt.Fprintln(w, state.EditText(stmts))
		return err
	default:
		return errors.New("unknown export format " + exportFormat + " (want json, yaml or sql)")
	}
}
