package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapquery/pkg/editor"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// FmtOptions holds options for the fmt command.
type FmtOptions struct {
	At    int
	Range string
	Write bool
	Check bool
	Watch bool
}

// NewFmtCommand creates the fmt command.
func NewFmtCommand() *cobra.Command {
	opts := &FmtOptions{At: -1}

	cmd := &cobra.Command{
		Use:   "fmt [files...]",
		Short: "Format SQL statements",
		Long: `Format the SQL statements of files, or of stdin when no file is given.

By default every statement is formatted. --at formats only the statement
enclosing a byte offset and --range formats the statements touched by a
byte range. Whitespace between statements is preserved.`,
		Example: `  # Format a file to stdout
  leapquery fmt work.sql

  # Rewrite files in place
  leapquery fmt -w queries/*.sql

  # Format the statement at offset 42 from stdin
  cat work.sql | leapquery fmt --at 42

  # Reformat files whenever they are saved
  leapquery fmt -w --watch work.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.At, "at", -1, "Format only the statement enclosing this byte offset")
	cmd.Flags().StringVar(&opts.Range, "range", "", "Format the statements within a byte range START:END")
	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write the result back to the files")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Report files that are not formatted and fail")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reformat files when they change (requires --write)")

	return cmd
}

type fmtResult struct {
	path string
	edit editor.Edit
}

func runFmt(cmd *cobra.Command, args []string, opts *FmtOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	if opts.At >= 0 && opts.Range != "" {
		return errors.New("--at and --range are mutually exclusive")
	}
	if (opts.Write || opts.Watch) && len(args) == 0 {
		return errors.New("--write and --watch require file arguments")
	}
	if opts.Watch && !opts.Write {
		return errors.New("--watch requires --write")
	}

	f := fmtFormatter(ctx, cmdCtx)

	if len(args) == 0 {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		edit, err := applyFormat(string(content), f, opts)
		if err != nil {
			return err
		}
		if opts.Check {
			if edit.Changed {
				return errors.New("stdin is not formatted")
			}
			return nil
		}
		_, err = io.WriteString(cmd.OutOrStdout(), edit.Text)
		return err
	}

	results, err := formatFiles(ctx, args, f, opts)
	if err != nil {
		return err
	}

	var unformatted []string
	for _, res := range results {
		switch {
		case opts.Check:
			if res.edit.Changed {
				unformatted = append(unformatted, res.path)
				cmdCtx.Renderer.Println(res.path)
			}
		case opts.Write:
			if res.edit.Changed {
				if err := writeFormatted(res.path, res.edit.Text); err != nil {
					return err
				}
				cmdCtx.Logger.Debug("formatted file", "file", res.path)
			}
		default:
			if len(results) > 1 {
				cmdCtx.Renderer.Println(cmdCtx.Renderer.Styles().Muted.Render("-- " + res.path))
			}
			_, _ = io.WriteString(cmd.OutOrStdout(), res.edit.Text)
		}
	}
	if len(unformatted) > 0 {
		return fmt.Errorf("%d file(s) not formatted", len(unformatted))
	}

	if opts.Watch {
		cmdCtx.Renderer.Hint("Watching for changes, press Ctrl+C to stop")
		return watchAndFormat(ctx, cmdCtx, args, f, opts)
	}
	return nil
}

// fmtFormatter resolves the width without failing when the history
// database is unavailable.
func fmtFormatter(ctx context.Context, cmdCtx *CommandContext) *format.Formatter {
	store, err := cmdCtx.OpenStore()
	if err != nil {
		cmdCtx.Logger.Debug("history database unavailable, using configured width", "error", err)
		return cmdCtx.Formatter(ctx, nil)
	}
	defer func() { _ = store.Close() }()
	return cmdCtx.Formatter(ctx, store)
}

// formatFiles formats files concurrently, returning results in argument
// order.
func formatFiles(ctx context.Context, paths []string, f *format.Formatter, opts *FmtOptions) ([]fmtResult, error) {
	results := make([]fmtResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			edit, err := applyFormat(string(content), f, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = fmtResult{path: path, edit: edit}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// applyFormat formats buffer according to the selection options.
func applyFormat(buffer string, f *format.Formatter, opts *FmtOptions) (editor.Edit, error) {
	switch {
	case opts.At >= 0:
		return editor.FormatAt(buffer, opts.At, f), nil
	case opts.Range != "":
		start, end, err := parseRange(opts.Range)
		if err != nil {
			return editor.Edit{}, err
		}
		return editor.FormatRange(buffer, start, end, f), nil
	default:
		return editor.FormatRange(buffer, 0, len(buffer), f), nil
	}
}

// parseRange parses "START:END" byte offsets.
func parseRange(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range %q (want START:END)", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q", a)
	}
	end, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q", b)
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	return start, end, nil
}

func writeFormatted(path, text string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// watchAndFormat reformats files in place whenever they are written.
func watchAndFormat(ctx context.Context, cmdCtx *CommandContext, paths []string, f *format.Formatter, opts *FmtOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch parent directories; editors often replace files on save
	watched := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	timers := make(map[string]*time.Timer)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !watched[filepath.Clean(event.Name)] {
				continue
			}

			// Debounce
			name := event.Name
			if t := timers[name]; t != nil {
				t.Stop()
			}
			timers[name] = time.AfterFunc(100*time.Millisecond, func() {
				if err := reformatFile(name, f, opts); err != nil {
					cmdCtx.Logger.Error("format failed", "file", name, "error", err)
					return
				}
				cmdCtx.Logger.Debug("file changed, reformatted", "file", name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Error("watcher error", "error", err)
		}
	}
}

func reformatFile(path string, f *format.Formatter, opts *FmtOptions) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	edit, err := applyFormat(string(content), f, opts)
	if err != nil || !edit.Changed {
		return err
	}
	return writeFormatted(path, edit.Text)
}
