package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/lexer"
	"github.com/mattn/go-runewidth"
)

const indentSize = 2

var indentUnit = strings.Repeat(" ", indentSize)

// line is one output line: an indent and the tokens laid out on it.
// Tokens are joined by a single space wherever the source had whitespace.
type line struct {
	indent string
	toks   []lexer.Token
}

// columns returns the display column at which each token starts.
func (l line) columns() []int {
	cols := make([]int, len(l.toks))
	col := len(l.indent)
	for i, t := range l.toks {
		if i > 0 && t.Space {
			col++
		}
		cols[i] = col
		col += runewidth.StringWidth(t.Text)
	}
	return cols
}

// width is the display width of the rendered line.
func (l line) width() int {
	if len(l.toks) == 0 {
		return len(l.indent)
	}
	cols := l.columns()
	last := len(l.toks) - 1
	return cols[last] + runewidth.StringWidth(l.toks[last].Text)
}

func (l line) first() lexer.Token {
	return l.toks[0]
}

func (l line) String() string {
	var b strings.Builder
	b.WriteString(l.indent)
	for i, t := range l.toks {
		if i > 0 && t.Space {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// Printer assembles formatted lines.
type Printer struct {
	output *bytes.Buffer
	last   lexer.Token
	lines  int
}

func newPrinter() *Printer {
	return &Printer{output: &bytes.Buffer{}}
}

func (p *Printer) writeLine(l line) {
	if len(l.toks) == 0 {
		return
	}
	if p.lines > 0 {
		p.output.WriteByte('\n')
	}
	p.output.WriteString(l.String())
	p.last = l.toks[len(l.toks)-1]
	p.lines++
}

// String returns the output terminated by a semicolon. A trailing line
// comment gets the semicolon on a line of its own.
func (p *Printer) String() string {
	if p.last.LineComment() {
		return p.output.String() + "\n;"
	}
	return strings.TrimRight(p.output.String(), " \t\n") + ";"
}
