package lexer

// QuoteState tracks whether a left-to-right scan is inside a quoted literal.
//
// A quote character toggles its own state only while the other quote kind
// is closed, so "it's" inside double quotes does not open a single-quoted
// literal. A doubled quote ('') toggles twice, which keeps the state right
// for the common escape without a stricter literal grammar.
type QuoteState struct {
	InSingle bool
	InDouble bool
}

// Step applies c to the state and reports whether c is outside any literal.
// Quote characters themselves are never outside.
func (q *QuoteState) Step(c byte) bool {
	switch {
	case c == '\'' && !q.InDouble:
		q.InSingle = !q.InSingle
		return false
	case c == '"' && !q.InSingle:
		q.InDouble = !q.InDouble
		return false
	}
	return !q.InSingle && !q.InDouble
}

// Quoted reports whether the scan is inside a literal.
func (q QuoteState) Quoted() bool {
	return q.InSingle || q.InDouble
}
