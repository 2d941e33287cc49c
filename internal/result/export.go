package result

import (
	"fmt"
	"io"
	"strings"
)

// Delimiter separates values in a delimited export.
type Delimiter string

// Supported delimiters.
const (
	DelimTab   Delimiter = "tab"
	DelimComma Delimiter = "comma"
	DelimPipe  Delimiter = "pipe"
)

// ParseDelimiter parses a delimiter name.
func ParseDelimiter(s string) (Delimiter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tab", "tsv", "\t":
		return DelimTab, nil
	case "comma", "csv", ",":
		return DelimComma, nil
	case "pipe", "|":
		return DelimPipe, nil
	default:
		return "", fmt.Errorf("unknown delimiter %q (want tab, comma or pipe)", s)
	}
}

// Sep returns the separator string.
func (d Delimiter) Sep() string {
	switch d {
	case DelimComma:
		return ","
	case DelimPipe:
		return "|"
	default:
		return "\t"
	}
}

// WriteDelimited writes a header line of column names followed by one line
// per row. Values are flattened to a single line; with DelimComma, values
// containing a comma or quote are quoted.
func WriteDelimited(w io.Writer, cols []Column, rows [][]any, d Delimiter) error {
	sep := d.Sep()
	cell := func(s string) string {
		s = flatten(s)
		if d == DelimComma {
			s = escapeCSV(s)
		}
		return s
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = cell(c.Name)
	}
	if _, err := io.WriteString(w, strings.Join(header, sep)+"\n"); err != nil {
		return err
	}

	for _, row := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			var v any
			if i < len(row) {
				v = row[i]
			}
			values[i] = cell(exportValue(v))
		}
		if _, err := io.WriteString(w, strings.Join(values, sep)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// flatten replaces line breaks and whitespace runs with single spaces.
func flatten(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func exportValue(v any) string {
	if v == nil {
		return ""
	}
	return formatValue(v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
