// Package tokenizer turns free text into normalised terms. Words are split
// on whitespace, lower-cased and stripped of every character outside
// [A-Za-z0-9]. Words that normalise to the empty string are discarded. There
// is no stemming and no stop-word removal.
package tokenizer

import (
	"strings"
	"unicode"
)

// Normalize lower-cases word and removes every non-ASCII-alphanumeric rune.
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// Tokenize breaks text into normalised terms in their original order.
// Duplicates are kept.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, unicode.IsSpace)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		term := Normalize(word)
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// TermFrequencies counts the occurrences of every distinct term in text.
// An empty text yields an empty, non-nil map.
func TermFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, term := range Tokenize(text) {
		freqs[term]++
	}
	return freqs
}
