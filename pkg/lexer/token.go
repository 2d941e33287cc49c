// Package lexer provides a quote-aware SQL tokenizer shared by the statement
// segmenter and the formatter.
//
// The tokenizer does not understand SQL grammar. It only knows how to keep
// quoted literals intact, how to recognize the formatter's keyword
// vocabulary, and when a keyword-looking word is really a host variable.
package lexer

// Kind classifies a token.
type Kind int

const (
	// Word is an identifier, number, or any vocabulary-external word.
	Word Kind = iota
	// Keyword is a word (or multi-word phrase) from the keyword vocabulary.
	Keyword
	// Literal is a single- or double-quoted run, quotes included.
	Literal
	// Punct is a single non-word, non-space byte.
	Punct
	// Comment is a "--" line comment or a "/* */" block comment.
	Comment
)

// Token is a lexical unit of a SQL buffer.
type Token struct {
	Kind Kind
	// Text is the source text, except for keywords where it is the
	// canonical upper-case, single-spaced form.
	Text string
	// Offset and End are byte offsets of the token in the source.
	Offset int
	End    int
	// Space reports whether whitespace separated this token from the
	// previous one.
	Space bool
}

// Is reports whether the token is the keyword kw.
func (t Token) Is(kw string) bool {
	return t.Kind == Keyword && t.Text == kw
}

// IsPunct reports whether the token is the punctuation byte c.
func (t Token) IsPunct(c byte) bool {
	return t.Kind == Punct && len(t.Text) == 1 && t.Text[0] == c
}

// Role returns the indentation role of a keyword token.
func (t Token) Role() Role {
	if t.Kind != Keyword {
		return RoleNone
	}
	return RoleOf(t.Text)
}

// LineComment reports whether the token is a "--" comment, which must end
// its line when re-rendered.
func (t Token) LineComment() bool {
	return t.Kind == Comment && len(t.Text) >= 2 && t.Text[:2] == "--"
}
