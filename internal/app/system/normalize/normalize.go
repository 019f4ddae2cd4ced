// Package normalize holds the canonical forms values are stored and compared
// in. Stores and handlers call these rather than trimming ad hoc, so a lookup
// always matches what was written.
package normalize

import (
	"strings"
	"unicode"
)

// Email is the key for users, login attempts and subscribers.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name collapses every whitespace run to one space.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Slug lowercases a catalog key and joins its words with hyphens, so
// "Fabric Recycling" and "fabric_recycling" both read "fabric-recycling".
func Slug(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(words, "-")
}

// Text prepares free-form input such as a message body: line endings become
// "\n", control characters other than newline and tab are dropped and the
// ends are trimmed.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\r':
			return '\n'
		case r == '\n', r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
