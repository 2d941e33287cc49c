package lexer

import (
	"sort"
	"strings"
)

// Role is the indentation role of a keyword.
type Role int

const (
	// RoleNone keywords are upper-cased but do not drive layout.
	RoleNone Role = iota
	// RoleMajor keywords open a top-level clause.
	RoleMajor
	// RoleChild keywords are subordinate to the most recent major keyword.
	RoleChild
)

// vocabulary is the fixed keyword table. Multi-word entries are matched as
// one token.
var vocabulary = []string{
	"WITH", "SELECT", "FROM", "WHERE", "AND", "OR",
	"ORDER BY", "GROUP BY", "HAVING",
	"JOIN", "INNER JOIN", "LEFT JOIN", "RIGHT JOIN", "FULL JOIN", "CROSS JOIN",
	"LEFT OUTER JOIN", "RIGHT OUTER JOIN", "FULL OUTER JOIN",
	"ON", "AS", "IN", "LIKE", "BETWEEN",
	"IS NULL", "IS NOT NULL", "EXISTS", "NOT EXISTS",
	"DECLARE", "CURSOR", "FOR", "PREPARE", "OPEN", "FETCH", "CLOSE",
	"CASE", "WHEN", "THEN", "ELSE", "END",
}

var majorKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP BY": true,
	"ORDER BY": true, "HAVING": true, "WITH": true, "DECLARE": true,
	"CURSOR": true, "FOR": true, "CASE": true,
}

var childKeywords = map[string]bool{
	"JOIN": true, "INNER JOIN": true, "LEFT JOIN": true, "RIGHT JOIN": true,
	"FULL JOIN": true, "CROSS JOIN": true, "LEFT OUTER JOIN": true,
	"RIGHT OUTER JOIN": true, "FULL OUTER JOIN": true,
	"ON": true, "AND": true, "OR": true, "WHEN": true, "THEN": true, "ELSE": true,
}

// phrases holds the vocabulary split into words, longest phrase first.
var phrases [][]string

func init() {
	phrases = make([][]string, 0, len(vocabulary))
	for _, kw := range vocabulary {
		phrases = append(phrases, strings.Fields(kw))
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return len(strings.Join(phrases[i], " ")) > len(strings.Join(phrases[j], " "))
	})
}

// RoleOf returns the role of the canonical keyword kw.
func RoleOf(kw string) Role {
	switch {
	case majorKeywords[kw]:
		return RoleMajor
	case childKeywords[kw]:
		return RoleChild
	default:
		return RoleNone
	}
}

// IsJoin reports whether kw belongs to the JOIN family.
func IsJoin(kw string) bool {
	return kw == "JOIN" || strings.HasSuffix(kw, " JOIN")
}
