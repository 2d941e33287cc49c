// Package editor applies statement-level edits to a SQL buffer: formatting
// the statement under the cursor or in a selection, inserting statements,
// and locating the token an error position points at.
//
// Every operation takes the buffer and cursor as values and returns the
// edited buffer with its new cursor, leaving persistence to the caller.
package editor

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/leapstack-labs/leapquery/pkg/lexer"
	"github.com/leapstack-labs/leapquery/pkg/segment"
)

// DefaultFileName is used when a buffer is saved without a name.
const DefaultFileName = "query.sql"

// Edit is the result of an editing operation.
type Edit struct {
	Text    string
	Cursor  int
	Changed bool
}

// FormatAt formats the statement under cursor and splices it back in
// place. Whitespace around the statement is kept.
func FormatAt(buffer string, cursor int, f *format.Formatter) Edit {
	span := segment.StatementAt(buffer, cursor)
	if span.Empty() {
		return Edit{Text: buffer, Cursor: cursor}
	}
	start, end := contentBounds(buffer, span)
	formatted := f.Format(span.Text)
	text := buffer[:start] + formatted + buffer[end:]
	return Edit{Text: text, Cursor: start + len(formatted), Changed: text != buffer}
}

// FormatRange formats every statement the selection touches. Statements
// cut by either end of the selection are formatted whole. The cursor is
// placed after the last formatted statement.
func FormatRange(buffer string, selStart, selEnd int, f *format.Formatter) Edit {
	if selStart == selEnd {
		return FormatAt(buffer, selStart, f)
	}
	spans := segment.StatementsInRange(buffer, selStart, selEnd)
	if len(spans) == 0 {
		return Edit{Text: buffer, Cursor: selEnd}
	}

	var b strings.Builder
	prev := 0
	cursor := 0
	for _, span := range spans {
		span = segment.StatementAt(buffer, span.Start)
		if span.Start < prev || span.Empty() {
			continue
		}
		start, end := contentBounds(buffer, span)
		formatted := f.Format(span.Text)
		b.WriteString(buffer[prev:start])
		b.WriteString(formatted)
		cursor = b.Len()
		prev = end
	}
	b.WriteString(buffer[prev:])

	text := b.String()
	return Edit{Text: text, Cursor: cursor, Changed: text != buffer}
}

// contentBounds returns the span region without surrounding whitespace.
// The terminating semicolon, when present, is included.
func contentBounds(buffer string, span segment.Span) (int, int) {
	raw := buffer[span.Start:span.End]
	start := span.Start + len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	end := span.Start + len(strings.TrimRight(raw, " \t\r\n"))
	return start, end
}

// InsertStatement inserts stmt after the statement under cursor, closing
// that statement with a semicolon if it lacks one. The cursor is placed
// just before the inserted statement's semicolon.
func InsertStatement(buffer string, cursor int, stmt string) Edit {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return Edit{Text: buffer, Cursor: cursor}
	}
	if !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}

	if strings.TrimSpace(buffer) == "" {
		return Edit{Text: stmt, Cursor: len(stmt) - 1, Changed: true}
	}

	span := segment.StatementAt(buffer, cursor)
	sep := "\n"
	if span.End > 0 && buffer[span.End-1] != ';' && !span.Empty() {
		sep = ";\n"
	}
	before := buffer[:span.End] + sep + stmt
	return Edit{Text: before + buffer[span.End:], Cursor: len(before) - 1, Changed: true}
}

// TokenRange returns the bounds of the identifier-like token at the
// 1-based position pos of text. Positions outside the text are clamped;
// when no word covers the position a one-byte range is returned.
func TokenRange(text string, pos int) (int, int) {
	if text == "" {
		return 0, 0
	}
	offset := pos - 1
	offset = max(0, min(len(text)-1, offset))

	if !lexer.IsWordChar(text[offset]) {
		return offset, offset + 1
	}
	start, end := offset, offset
	for start > 0 && lexer.IsWordChar(text[start-1]) {
		start--
	}
	for end < len(text) && lexer.IsWordChar(text[end]) {
		end++
	}
	return start, end
}

// ErrorRange maps a 1-based error position reported for the statement in
// span to buffer offsets of the offending token.
func ErrorRange(buffer string, span segment.Span, pos int) (int, int) {
	start, end := contentBounds(buffer, span)
	s, e := TokenRange(buffer[start:end], pos)
	return start + s, start + e
}

// EnsureSQLExt returns a file name suitable for saving a buffer.
func EnsureSQLExt(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFileName
	}
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".sql") || strings.HasSuffix(lower, ".txt") {
		return name
	}
	return name + ".sql"
}
