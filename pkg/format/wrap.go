package format

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/lexer"
)

// thenRatio is how far into the line THEN must start before a WHEN line is
// split at it.
const thenRatio = 0.6

type wrapper func(l line, maxWidth int) []line

// wrapLines runs each wrap pass over every line produced by the previous
// pass. Breaks only replace whitespace that separated two tokens, so a
// line that has no such break point is left as it is.
func wrapLines(lines []line, maxWidth int) []line {
	for _, wrap := range []wrapper{wrapCommas, wrapConcat, wrapWhenThen, wrapElse} {
		next := make([]line, 0, len(lines))
		for _, l := range lines {
			next = append(next, wrap(l, maxWidth)...)
		}
		lines = next
	}
	return lines
}

// wrapCommas breaks a long list after commas, preferring a comma one
// parenthesis level deep over a top-level one.
func wrapCommas(l line, maxWidth int) []line {
	if l.width() <= maxWidth || !commaWrappable(l) {
		return []line{l}
	}

	cont := l.indent + indentUnit
	var out []line
	cur := l
	for cur.width() > maxWidth {
		i := commaBreak(cur, maxWidth)
		if i < 0 {
			break
		}
		out = append(out, line{indent: cur.indent, toks: cur.toks[:i+1]})
		cur = line{indent: cont, toks: cur.toks[i+1:]}
	}
	return append(out, cur)
}

// commaWrappable reports whether the line is a column or argument list:
// it has several commas, opens a SELECT or WITH clause, or has a comma
// inside parentheses.
func commaWrappable(l line) bool {
	commas := 0
	nested := false
	clause := false
	depth := 0
	for _, t := range l.toks {
		switch {
		case t.Is("SELECT"), t.Is("WITH"):
			clause = true
		case t.IsPunct('('):
			depth++
		case t.IsPunct(')'):
			depth = max(0, depth-1)
		case t.IsPunct(','):
			commas++
			if depth > 0 {
				nested = true
			}
		}
	}
	return commas >= 2 || (commas > 0 && (clause || nested))
}

// commaBreak returns the index of the comma to break after, or -1.
func commaBreak(l line, maxWidth int) int {
	cols := l.columns()
	depth := 0
	last0, last1 := -1, -1
	for i, t := range l.toks {
		switch {
		case t.IsPunct('('):
			depth++
		case t.IsPunct(')'):
			depth = max(0, depth-1)
		case t.IsPunct(','):
			if i == 0 || cols[i]+1 > maxWidth || i+1 >= len(l.toks) || !l.toks[i+1].Space {
				continue
			}
			switch depth {
			case 0:
				last0 = i
			case 1:
				last1 = i
			}
		}
	}
	if last1 >= 0 {
		return last1
	}
	return last0
}

func isConcat(t lexer.Token) bool {
	return t.Kind == lexer.Word && strings.EqualFold(t.Text, "CONCAT")
}

// concatOperators returns the indexes of CONCAT operators that have
// whitespace on both sides.
func concatOperators(l line) []int {
	var idx []int
	for i := 1; i+1 < len(l.toks); i++ {
		if isConcat(l.toks[i]) && l.toks[i].Space && l.toks[i+1].Space {
			idx = append(idx, i)
		}
	}
	return idx
}

// wrapConcat breaks a long CONCAT chain before the last operator that
// keeps the head within the width, repeating until the line fits.
func wrapConcat(l line, maxWidth int) []line {
	if l.width() <= maxWidth || len(concatOperators(l)) < 2 {
		return []line{l}
	}

	cont := l.indent + indentUnit
	var out []line
	cur := l
	for cur.width() > maxWidth {
		cols := cur.columns()
		brk := -1
		for _, i := range concatOperators(cur) {
			if cols[i]-1 <= maxWidth {
				brk = i
			}
		}
		if brk <= 0 {
			break
		}
		out = append(out, line{indent: cur.indent, toks: cur.toks[:brk]})
		cur = line{indent: cont, toks: cur.toks[brk:]}
	}
	return append(out, cur)
}

// wrapWhenThen moves the THEN branch of a long WHEN line to its own line
// when THEN starts late in the line.
func wrapWhenThen(l line, maxWidth int) []line {
	if l.width() <= maxWidth || !l.first().Is("WHEN") {
		return []line{l}
	}
	cols := l.columns()
	for i := 1; i+1 < len(l.toks); i++ {
		t := l.toks[i]
		if !t.Is("THEN") || !t.Space || !l.toks[i+1].Space {
			continue
		}
		if float64(cols[i]-1) > thenRatio*float64(maxWidth) {
			return []line{
				{indent: l.indent, toks: l.toks[:i]},
				{indent: l.indent + indentUnit, toks: l.toks[i:]},
			}
		}
		break
	}
	return []line{l}
}

// wrapElse puts the expression of a long ELSE line on its own line.
func wrapElse(l line, maxWidth int) []line {
	if l.width() <= maxWidth || !l.first().Is("ELSE") || len(l.toks) < 2 || !l.toks[1].Space {
		return []line{l}
	}
	return []line{
		{indent: l.indent, toks: l.toks[:1]},
		{indent: l.indent + indentUnit, toks: l.toks[1:]},
	}
}
