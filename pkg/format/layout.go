package format

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/lexer"
)

// clauseBreaks are the keywords that always start a new line.
var clauseBreaks = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "WITH": true,
	"ORDER BY": true, "GROUP BY": true, "HAVING": true, "ON": true,
	"AND": true, "OR": true,
	"CASE": true, "WHEN": true, "END": true,
}

// breakLines splits the token stream into lines at clause keywords.
func breakLines(toks []lexer.Token) []line {
	var lines []line
	var cur []lexer.Token
	for i, t := range toks {
		if i > 0 && breaksBefore(toks, i) {
			lines = append(lines, line{toks: cur})
			cur = nil
		}
		cur = append(cur, t)
	}
	return append(lines, line{toks: cur})
}

func breaksBefore(toks []lexer.Token, i int) bool {
	t := toks[i]
	switch {
	case toks[i-1].LineComment():
		return true
	case t.Kind != lexer.Keyword:
		return false
	default:
		return clauseBreaks[t.Text] || lexer.IsJoin(t.Text)
	}
}

// indentLines assigns each line its indent from the keyword it starts with.
//
// The first major keyword of the statement sits at column zero and later
// ones one level in. Child keywords align just past the most recent major
// keyword, except WHEN/THEN/ELSE inside a CASE, which sit one level deeper
// than the CASE. END closes the innermost CASE and takes its indent. Any
// other line continues the previous line's indent.
func indentLines(lines []line) []line {
	var (
		lastMajor  string
		firstMajor = true
		caseStack  []string
		prevIndent string
	)

	for i := range lines {
		first := lines[i].first()
		kw := ""
		if first.Kind == lexer.Keyword {
			kw = first.Text
		}

		var indent string
		switch {
		case kw == "END" && len(caseStack) > 0:
			indent = caseStack[len(caseStack)-1]
			caseStack = caseStack[:len(caseStack)-1]
		case first.Role() == lexer.RoleMajor:
			if !firstMajor {
				indent = indentUnit
			}
			firstMajor = false
			lastMajor = kw
			if kw == "CASE" {
				caseStack = append(caseStack, indent)
			}
		case first.Role() == lexer.RoleChild:
			if (kw == "WHEN" || kw == "THEN" || kw == "ELSE") && len(caseStack) > 0 {
				indent = caseStack[len(caseStack)-1] + indentUnit
			} else {
				indent = strings.Repeat(" ", len(lastMajor)+1)
			}
		case lastMajor != "":
			indent = prevIndent
		}

		lines[i].indent = indent
		prevIndent = indent
	}
	return lines
}
