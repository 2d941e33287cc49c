package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapquery/internal/client"
	"github.com/leapstack-labs/leapquery/internal/result"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/leapstack-labs/leapquery/pkg/editor"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/leapstack-labs/leapquery/pkg/segment"
	"github.com/spf13/cobra"
)

const (
	promptMain = "leapquery> "
	promptCont = "      ...> "
)

var errQuit = errors.New("quit")

// submitter runs a statement against the endpoint.
type submitter interface {
	Submit(ctx context.Context, stmt string) (*result.Set, error)
}

// replSession holds the state of an interactive session.
type replSession struct {
	cmdCtx    *CommandContext
	client    submitter
	store     *state.SQLiteStore
	formatter *format.Formatter
	out       io.Writer

	last    *result.Set
	page    int
	perPage int
	lastSQL string
	pending strings.Builder
	session []string
}

func newREPLSession(ctx context.Context, cmdCtx *CommandContext, c submitter, store *state.SQLiteStore, out io.Writer) *replSession {
	return &replSession{
		cmdCtx:    cmdCtx,
		client:    c,
		store:     store,
		formatter: cmdCtx.Formatter(ctx, store),
		out:       out,
		page:      1,
		perPage:   result.SnapPerPage(cmdCtx.Cfg.PageSize),
	}
}

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext) error {
	ctx := cmd.Context()

	c, err := cmdCtx.Client()
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess := newREPLSession(ctx, cmdCtx, c, store, cmd.OutOrStdout())

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptMain,
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Seed line history from the store, oldest first
	if stmts, err := store.Statements(ctx); err == nil {
		for i := len(stmts) - 1; i >= 0; i-- {
			_ = rl.SaveHistory(strings.ReplaceAll(stmts[i], "\n", " "))
		}
	}

	endpoint := c.Endpoint()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "LeapQuery REPL (endpoint: %s)\n", endpoint)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.pending.Reset()
			rl.SetPrompt(promptMain)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := sess.handleLine(ctx, line); errors.Is(err, errQuit) {
			return nil
		}
		if sess.pending.Len() > 0 {
			rl.SetPrompt(promptCont)
		} else {
			rl.SetPrompt(promptMain)
		}
	}
}

// handleLine processes one input line: a dot command when nothing is
// pending, otherwise SQL accumulated until a statement terminator.
func (s *replSession) handleLine(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)
	if s.pending.Len() == 0 {
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, ".") {
			err := s.dotCommand(ctx, trimmed)
			if err != nil && !errors.Is(err, errQuit) {
				s.cmdCtx.Renderer.Error(err)
			}
			return err
		}
	}

	s.pending.WriteString(line)
	s.pending.WriteByte('\n')

	spans, rest := segment.Complete(s.pending.String())
	s.pending.Reset()
	if strings.TrimSpace(rest) != "" {
		s.pending.WriteString(rest)
	}
	for _, span := range spans {
		s.execute(ctx, span.Text)
	}
	return nil
}

// execute submits stmt and renders the first page of its result.
func (s *replSession) execute(ctx context.Context, stmt string) {
	set, err := s.client.Submit(ctx, stmt)
	if err != nil {
		printStatementError(s.cmdCtx.Renderer, stmt, segment.Span{Text: stmt, End: len(stmt)}, err)
		return
	}
	saveHistory(ctx, s.cmdCtx, s.store, stmt)
	s.session = append(s.session, stmt)
	s.lastSQL = stmt
	s.last = set
	s.page = 1
	s.show()
}

// show renders the current page of the last result.
func (s *replSession) show() {
	if s.last == nil {
		_, _ = fmt.Fprintln(s.out, result.NoResults)
		return
	}
	f, err := result.ParseFormat(s.cmdCtx.Cfg.Output)
	if err != nil {
		s.cmdCtx.Renderer.Error(err)
		return
	}
	opts := result.RenderOptions{Format: f, Page: s.page, PerPage: s.perPage}
	if err := result.Render(s.out, s.last, opts); err != nil {
		s.cmdCtx.Renderer.Error(err)
	}
	_, _ = fmt.Fprintln(s.out)
}

func (s *replSession) dotCommand(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit":
		return errQuit

	case ".help":
		printREPLHelp(s.out)

	case ".format":
		if s.lastSQL == "" {
			return errors.New("no statement to format")
		}
		_, _ = fmt.Fprintln(s.out, s.formatter.Format(s.lastSQL))

	case ".width":
		if len(args) == 0 {
			_, _ = fmt.Fprintf(s.out, "max width: %d\n", s.formatter.Options().MaxWidth)
			return nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid width %q", args[0])
		}
		if err := s.store.SetMaxWidth(ctx, n); err != nil {
			return err
		}
		s.formatter = format.New(format.Options{MaxWidth: n})
		_, _ = fmt.Fprintf(s.out, "max width set to %d\n", n)

	case ".history":
		return s.listHistory(ctx, args)

	case ".recall":
		if len(args) == 0 {
			return errors.New("usage: .recall <n>")
		}
		return s.recall(ctx, args[0])

	case ".dedupe":
		n, err := s.store.DedupeHistory(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "removed %d duplicate entries\n", n)

	case ".clear-history":
		if err := s.store.ClearHistory(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(s.out, "history cleared")

	case ".open":
		if len(args) == 0 {
			return errors.New("usage: .open <file>")
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		for _, span := range segment.SplitStatements(string(content)) {
			s.execute(ctx, span.Text)
		}

	case ".save":
		name := editor.DefaultFileName
		if len(args) > 0 {
			name = args[0]
		}
		return s.save(editor.EnsureSQLExt(name))

	case ".export":
		return s.export(args)

	case ".page":
		if len(args) == 0 {
			return errors.New("usage: .page <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page %q", args[0])
		}
		s.page = n
		s.show()

	case ".perpage":
		if len(args) == 0 {
			_, _ = fmt.Fprintf(s.out, "rows per page: %d\n", s.perPage)
			return nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page size %q", args[0])
		}
		s.perPage = result.SnapPerPage(n)
		s.page = 1
		if s.last != nil {
			s.show()
		}

	default:
		return fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return nil
}

func (s *replSession) listHistory(ctx context.Context, args []string) error {
	entries, err := s.store.History(ctx)
	if err != nil {
		return err
	}
	limit := len(entries)
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = min(n, limit)
	}
	if limit == 0 {
		_, _ = fmt.Fprintln(s.out, "(history is empty)")
		return nil
	}
	muted := s.cmdCtx.Renderer.Styles().Muted
	for i, e := range entries[:limit] {
		_, _ = fmt.Fprintf(s.out, "%s %s\n", muted.Render(fmt.Sprintf("%3d", i+1)), oneLine(e.Statement))
	}
	return nil
}

func (s *replSession) recall(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid history entry %q", arg)
	}
	stmts, err := s.store.Statements(ctx)
	if err != nil {
		return err
	}
	if n > len(stmts) {
		return fmt.Errorf("history has %d entries", len(stmts))
	}
	stmt := stmts[n-1]
	_, _ = fmt.Fprintln(s.out, stmt)
	s.execute(ctx, stmt)
	return nil
}

func (s *replSession) save(name string) error {
	if len(s.session) == 0 {
		return errors.New("no statements to save")
	}
	if err := os.WriteFile(name, []byte(state.EditText(s.session)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	_, _ = fmt.Fprintf(s.out, "saved %d statements to %s\n", len(s.session), name)
	return nil
}

func (s *replSession) export(args []string) error {
	if s.last == nil || s.last.Empty() {
		return errors.New("no result to export")
	}
	d := result.DelimTab
	if len(args) > 0 {
		var err error
		if d, err = result.ParseDelimiter(args[0]); err != nil {
			return err
		}
	}
	if len(args) < 2 {
		return result.WriteDelimited(s.out, s.last.Columns, s.last.Rows, d)
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[1], err)
	}
	if err := result.WriteDelimited(f, s.last.Columns, s.last.Rows, d); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "exported %d rows to %s\n", len(s.last.Rows), args[1])
	return nil
}

func oneLine(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                     Show this help message
  .format                   Format the last statement
  .width [n]                Show or set the format width
  .history [n]              List the newest n history entries
  .recall <n>               Run history entry n
  .dedupe                   Remove duplicate history entries
  .clear-history            Remove every history entry
  .open <file>              Run every statement of a file
  .save [file]              Save this session's statements
  .export [tab|comma|pipe] [file]
                            Write the last result delimited
  .page <n>                 Show page n of the last result
  .perpage [n]              Show or set rows per page
  .quit / .exit             Exit the REPL

Tips:
  - Statements run when terminated with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// newDotCompleter creates a readline completer for dot commands.
func newDotCompleter() *readline.PrefixCompleter {
	delims := make([]readline.PrefixCompleterInterface, 0, 3)
	for _, d := range []string{"tab", "comma", "pipe"} {
		delims = append(delims, readline.PcItem(d))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".format"),
		readline.PcItem(".width"),
		readline.PcItem(".history"),
		readline.PcItem(".recall"),
		readline.PcItem(".dedupe"),
		readline.PcItem(".clear-history"),
		readline.PcItem(".open"),
		readline.PcItem(".save"),
		readline.PcItem(".export", delims...),
		readline.PcItem(".page"),
		readline.PcItem(".perpage"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

var _ submitter = (*client.Client)(nil)
