package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	headingChunk = 20
	headingMax   = 60
	wrapWidth    = 60
)

// NoResults is printed for a result without columns.
const NoResults = "No results."

// Format selects how a result set is rendered.
type Format string

// Supported output formats.
const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, csv or md)", s)
	}
}

// RenderOptions controls Render.
type RenderOptions struct {
	Format  Format
	Page    int // 1-based; zero renders the first page
	PerPage int // zero renders every row
}

// Render writes set to w.
func Render(w io.Writer, set *Set, opts RenderOptions) error {
	if set == nil || set.Empty() {
		_, err := fmt.Fprintln(w, NoResults)
		return err
	}

	rows := set.Rows
	var page *Page
	if opts.PerPage > 0 && opts.Format == FormatTable {
		p := set.Page(opts.Page, opts.PerPage)
		page = &p
		rows = p.Rows
	}

	switch opts.Format {
	case FormatJSON:
		return renderJSON(w, set.Columns, rows)
	case FormatCSV:
		return WriteDelimited(w, set.Columns, rows, DelimComma)
	case FormatMarkdown:
		return renderMarkdown(w, set.Columns, rows)
	default:
		return renderTable(w, set, rows, page)
	}
}

func renderTable(w io.Writer, set *Set, rows [][]any, page *Page) error {
	_, _ = fmt.Fprintln(w, set.Meta())

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(set.Columns))
	configs := make([]table.ColumnConfig, 0, len(set.Columns))
	for i, col := range set.Columns {
		headerRow[i] = headingLines(col.Heading())
		cfg := table.ColumnConfig{Number: i + 1}
		if col.RightAlign() {
			cfg.Align = text.AlignRight
			cfg.AlignHeader = text.AlignRight
		}
		if col.Wrap() {
			cfg.WidthMax = wrapWidth
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs = append(configs, cfg)
	}
	t.AppendHeader(headerRow)
	t.SetColumnConfigs(configs)

	for _, r := range rows {
		row := make(table.Row, len(set.Columns))
		for i := range set.Columns {
			if i < len(r) {
				row[i] = formatValue(r[i])
			}
		}
		t.AppendRow(row)
	}

	t.Render()
	if page != nil && page.Count > 1 {
		_, _ = fmt.Fprintf(w, "Showing %d to %d of %d rows (page %d of %d)\n",
			page.Start+1, page.End(), len(set.Rows), page.Number, page.Count)
		return nil
	}
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(set.Rows))
	return nil
}

// renderJSON writes rows as an array of objects with keys in column order.
func renderJSON(w io.Writer, cols []Column, rows [][]any) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, r := range rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, col := range cols {
			if j > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(col.Name)
			if err != nil {
				return err
			}
			var v any
			if j < len(r) {
				v = r[j]
			}
			val, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to encode column %s: %w", col.Name, err)
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("}")
	}
	if len(rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func renderMarkdown(w io.Writer, cols []Column, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	names := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		names[i] = markdownCell(col.Heading())
		seps[i] = "---"
		if col.RightAlign() {
			seps[i] = "--:"
		}
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(names, " | "))
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			var v any
			if i < len(r) {
				v = r[i]
			}
			values[i] = markdownCell(formatValue(v))
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func markdownCell(s string) string {
	return strings.ReplaceAll(flatten(s), "|", `\|`)
}

// headingLines splits a long heading into chunks of headingChunk runes, one
// per line.
func headingLines(h string) string {
	runes := []rune(h)
	if len(runes) > headingMax {
		runes = runes[:headingMax]
	}
	if len(runes) <= headingChunk {
		return string(runes)
	}
	var parts []string
	for len(runes) > 0 {
		n := min(headingChunk, len(runes))
		parts = append(parts, strings.TrimSpace(string(runes[:n])))
		runes = runes[n:]
	}
	return strings.Join(parts, "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
