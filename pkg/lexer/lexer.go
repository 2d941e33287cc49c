package lexer

import "strings"

// Lexer splits SQL text into tokens.
type Lexer struct {
	input  string
	pos    int // current position in input
	tokens []Token
}

// Tokenize returns the tokens of src. It never fails: an unterminated
// literal or block comment runs to the end of the input.
func Tokenize(src string) []Token {
	l := &Lexer{input: src}
	l.run()
	return l.tokens
}

func (l *Lexer) run() {
	space := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isSpace(ch) {
			space = true
			l.pos++
			continue
		}

		var tok Token
		switch {
		case ch == '\'' || ch == '"':
			tok = l.readLiteral(ch)
		case ch == '-' && l.peekChar() == '-':
			tok = l.readLineComment()
		case ch == '/' && l.peekChar() == '*':
			tok = l.readBlockComment()
		case isWordChar(ch):
			tok = l.readWord(space)
		default:
			tok = Token{Kind: Punct, Text: l.input[l.pos : l.pos+1], Offset: l.pos, End: l.pos + 1}
			l.pos++
		}
		tok.Space = space
		l.tokens = append(l.tokens, tok)
		space = false
	}
}

// peekChar returns the byte after the current one without advancing.
func (l *Lexer) peekChar() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) readLiteral(quote byte) Token {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		l.pos++
	}
	if l.pos < len(l.input) {
		l.pos++
	}
	return Token{Kind: Literal, Text: l.input[start:l.pos], Offset: start, End: l.pos}
}

func (l *Lexer) readLineComment() Token {
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
	}
	text := strings.TrimRight(l.input[start:l.pos], " \t\r")
	return Token{Kind: Comment, Text: text, Offset: start, End: start + len(text)}
}

func (l *Lexer) readBlockComment() Token {
	start := l.pos
	end := strings.Index(l.input[start+2:], "*/")
	if end < 0 {
		l.pos = len(l.input)
	} else {
		l.pos = start + 2 + end + 2
	}
	return Token{Kind: Comment, Text: l.input[start:l.pos], Offset: start, End: l.pos}
}

// readWord reads a word or a (possibly multi-word) keyword.
func (l *Lexer) readWord(space bool) Token {
	start := l.pos
	if !l.hostVariable(space) {
		for _, words := range phrases {
			if end, ok := l.matchPhrase(start, words); ok {
				l.pos = end
				return Token{Kind: Keyword, Text: strings.Join(words, " "), Offset: start, End: end}
			}
		}
	}
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) {
		l.pos++
	}
	return Token{Kind: Word, Text: l.input[start:l.pos], Offset: start, End: l.pos}
}

// hostVariable reports whether the word about to be read is a host
// variable reference (":name", "&name") or the member of a qualified name.
func (l *Lexer) hostVariable(space bool) bool {
	if len(l.tokens) == 0 {
		return false
	}
	prev := l.tokens[len(l.tokens)-1]
	if prev.IsPunct(':') || prev.IsPunct('&') {
		return true
	}
	return prev.IsPunct('.') && !space
}

// matchPhrase matches words case-insensitively at start, allowing any run
// of whitespace between them, and returns the end offset of the match.
func (l *Lexer) matchPhrase(start int, words []string) (int, bool) {
	p := start
	for i, w := range words {
		if i > 0 {
			q := p
			for q < len(l.input) && isSpace(l.input[q]) {
				q++
			}
			if q == p {
				return 0, false
			}
			p = q
		}
		if p+len(w) > len(l.input) || !strings.EqualFold(l.input[p:p+len(w)], w) {
			return 0, false
		}
		p += len(w)
	}
	if p < len(l.input) && isWordChar(l.input[p]) {
		return 0, false
	}
	return p, true
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

// isWordChar accepts the identifier characters of DB2 SQL plus any byte of a
// multi-byte UTF-8 sequence.
func isWordChar(ch byte) bool {
	return ch == '_' || ch == '$' || ch == '#' || ch == '@' ||
		('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') ||
		('0' <= ch && ch <= '9') || ch >= 0x80
}

// IsWordChar reports whether ch can appear in an identifier.
func IsWordChar(ch byte) bool {
	return isWordChar(ch)
}
