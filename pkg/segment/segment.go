// Package segment locates individual SQL statements inside a buffer that
// holds many semicolon-separated statements.
//
// All offsets are byte offsets. Semicolons inside single- or double-quoted
// literals never split statements. Comments are not recognized here: a
// semicolon inside a comment still ends a statement.
package segment

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/lexer"
)

// Span is one statement of a buffer.
type Span struct {
	// Text is the trimmed statement without its terminating semicolon.
	Text string
	// Start and End delimit the raw statement in the buffer. End is
	// exclusive and includes the terminating semicolon when present.
	Start int
	End   int
}

// Empty reports whether the span holds no statement text.
func (s Span) Empty() bool {
	return s.Text == ""
}

// StatementAt returns the statement enclosing cursor.
//
// The backward and forward scans each start with a fresh quote state, so
// the quote state at the cursor is not derived from the buffer start.
func StatementAt(buffer string, cursor int) Span {
	if buffer == "" {
		return Span{}
	}
	cursor = clamp(cursor, 0, len(buffer))

	start := 0
	var back lexer.QuoteState
	for i := cursor - 1; i >= 0; i-- {
		if back.Step(buffer[i]) && buffer[i] == ';' {
			start = i + 1
			break
		}
	}

	end := len(buffer)
	var fwd lexer.QuoteState
	for i := cursor; i < len(buffer); i++ {
		if fwd.Step(buffer[i]) && buffer[i] == ';' {
			end = i + 1
			break
		}
	}

	return Span{Text: clean(buffer[start:end]), Start: start, End: end}
}

// StatementsInRange returns the non-empty statements of the selection
// [selStart, selEnd). The quote state resets at selStart.
func StatementsInRange(buffer string, selStart, selEnd int) []Span {
	selStart = clamp(selStart, 0, len(buffer))
	selEnd = clamp(selEnd, 0, len(buffer))
	if selStart > selEnd {
		selStart, selEnd = selEnd, selStart
	}

	var spans []Span
	var q lexer.QuoteState
	stmtStart := selStart
	for i := selStart; i < selEnd; i++ {
		if q.Step(buffer[i]) && buffer[i] == ';' {
			spans = appendSpan(spans, buffer, stmtStart, i+1)
			stmtStart = i + 1
		}
	}
	if stmtStart < selEnd {
		spans = appendSpan(spans, buffer, stmtStart, selEnd)
	}
	return spans
}

// SplitStatements returns every non-empty statement of buffer.
func SplitStatements(buffer string) []Span {
	return StatementsInRange(buffer, 0, len(buffer))
}

// Complete returns the semicolon-terminated statements of buffer and the
// unterminated text that follows them. Input read line by line is
// complete once rest is blank.
func Complete(buffer string) ([]Span, string) {
	var spans []Span
	var q lexer.QuoteState
	stmtStart := 0
	for i := 0; i < len(buffer); i++ {
		if q.Step(buffer[i]) && buffer[i] == ';' {
			spans = appendSpan(spans, buffer, stmtStart, i+1)
			stmtStart = i + 1
		}
	}
	return spans, buffer[stmtStart:]
}

// Texts returns the statement texts of spans.
func Texts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func appendSpan(spans []Span, buffer string, start, end int) []Span {
	text := clean(buffer[start:end])
	if text == "" {
		return spans
	}
	return append(spans, Span{Text: text, Start: start, End: end})
}

// clean trims raw and removes one trailing semicolon.
func clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimSuffix(text, ";")
	return strings.TrimSpace(text)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
