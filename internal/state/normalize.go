package state

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/lexer"
	"golang.org/x/text/cases"
)

// NormalizeKey returns the key under which a statement is deduplicated:
// the trailing semicolon is dropped, whitespace runs collapse to one space
// and text is case-folded, except inside quoted literals which are kept
// verbatim.
func NormalizeKey(stmt string) string {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))

	fold := cases.Fold()
	var (
		out       strings.Builder
		run       strings.Builder
		q         lexer.QuoteState
		prevSpace bool
	)
	flush := func() {
		if run.Len() > 0 {
			out.WriteString(fold.String(run.String()))
			run.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !q.Step(ch) {
			flush()
			out.WriteByte(ch)
			prevSpace = false
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v' {
			if !prevSpace {
				run.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		run.WriteByte(ch)
		prevSpace = false
	}
	flush()
	return strings.TrimSpace(out.String())
}
