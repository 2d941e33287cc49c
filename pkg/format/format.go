// Package format renders a single SQL statement in a canonical layout:
// upper-case keywords, one clause per line, indentation driven by keyword
// roles and a width-limited wrap pass.
//
// The formatter works on the token stream of pkg/lexer, so quoted
// literals and comments are reproduced verbatim and formatting is
// idempotent.
package format

import (
	"github.com/leapstack-labs/leapquery/pkg/lexer"
)

const (
	// DefaultMaxWidth is the wrap width used by Format.
	DefaultMaxWidth = 80
	// MinMaxWidth is the smallest width accepted from user configuration.
	MinMaxWidth = 40
)

// Options configures a Formatter.
type Options struct {
	// MaxWidth is the line width the wrap pass aims for. Zero or a
	// negative value disables wrapping.
	MaxWidth int
}

// DefaultOptions returns the options used by Format.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth}
}

// Formatter formats statements with fixed options. It holds no mutable
// state and is safe for concurrent use.
type Formatter struct {
	opts Options
}

// New creates a Formatter.
func New(opts Options) *Formatter {
	return &Formatter{opts: opts}
}

// Options returns the formatter's options.
func (f *Formatter) Options() Options {
	return f.opts
}

// Format formats stmt with the default options.
func Format(stmt string) string {
	return New(DefaultOptions()).Format(stmt)
}

// Format returns stmt reformatted and terminated by exactly one semicolon.
func (f *Formatter) Format(stmt string) string {
	toks := trimTerminators(lexer.Tokenize(stmt))
	if len(toks) == 0 {
		return ";"
	}

	lines := indentLines(breakLines(toks))
	if f.opts.MaxWidth > 0 {
		lines = wrapLines(lines, f.opts.MaxWidth)
	}

	p := newPrinter()
	for _, l := range lines {
		p.writeLine(l)
	}
	return p.String()
}

// trimTerminators drops trailing semicolons.
func trimTerminators(toks []lexer.Token) []lexer.Token {
	for len(toks) > 0 && toks[len(toks)-1].IsPunct(';') {
		toks = toks[:len(toks)-1]
	}
	return toks
}
