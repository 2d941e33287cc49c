package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/cli/config"
	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/client"
	"github.com/leapstack-labs/leapquery/internal/result"
	"github.com/leapstack-labs/leapquery/pkg/editor"
	"github.com/leapstack-labs/leapquery/pkg/segment"
)

// renderSet renders set in the configured output format. Table output is
// paged by the configured page size when page is positive.
func renderSet(w io.Writer, cfg *config.Config, set *result.Set, page int) error {
	f, err := result.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	opts := result.RenderOptions{Format: f}
	if page > 0 {
		opts.Page = page
		opts.PerPage = result.SnapPerPage(cfg.PageSize)
	}
	return result.Render(w, set, opts)
}

// printStatementError reports a failed statement. Syntax errors with a
// position are shown with the offending line of buffer and a caret under
// the token.
func printStatementError(r *output.Renderer, buffer string, span segment.Span, err error) {
	r.Error(err)

	var sqlErr *client.SQLError
	if !errors.As(err, &sqlErr) || !sqlErr.IsSyntax() || sqlErr.Position <= 0 {
		return
	}
	start, end := editor.ErrorRange(buffer, span, sqlErr.Position)
	line, caret := caretLine(buffer, start, end)
	if line == "" {
		return
	}
	// styles expand tabs, so only the carets are rendered
	i := strings.IndexByte(caret, '^')
	_, _ = fmt.Fprintln(r.ErrOut(), "  "+line)
	_, _ = fmt.Fprintln(r.ErrOut(), "  "+caret[:i]+r.Styles().Caret.Render(caret[i:]))
}

// caretLine returns the buffer line containing start and a marker line
// with carets under [start, end). Tabs in the prefix are kept so the
// carets line up.
func caretLine(buffer string, start, end int) (string, string) {
	if start < 0 || start > len(buffer) {
		return "", ""
	}
	lineStart := strings.LastIndexByte(buffer[:start], '\n') + 1
	lineEnd := len(buffer)
	if i := strings.IndexByte(buffer[start:], '\n'); i >= 0 {
		lineEnd = start + i
	}
	end = min(max(end, start+1), lineEnd)

	var prefix strings.Builder
	for _, r := range buffer[lineStart:start] {
		if r == '\t' {
			prefix.WriteByte('\t')
		} else {
			prefix.WriteByte(' ')
		}
	}
	width := max(len([]rune(buffer[start:end])), 1)
	line := strings.TrimRight(buffer[lineStart:lineEnd], "\r")
	return line, prefix.String() + strings.Repeat("^", width)
}
