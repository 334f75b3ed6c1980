// Package tokenize turns raw search queries into index keys.
package tokenize

import (
	"strings"
	"unicode"
)

// Tokenize splits query on whitespace, trims leading and trailing
// non-alphanumeric runes from every piece and lowercases what is left.
// Empty pieces are dropped; order and duplicates are kept.
func Tokenize(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, isNotAlphanumeric)
		if word == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

func isNotAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
