package store

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenRegex matches alphanumeric word sequences.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// accentStripper decomposes characters and drops combining marks,
// so "café" and "cafe" index to the same term.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize splits prose into normalized terms: case-folded,
// accent-stripped, short tokens filtered.
func Tokenize(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = 2
	}

	folded := strings.ToLower(StripAccents(text))
	words := tokenRegex.FindAllString(folded, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= minLength {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// StripAccents removes diacritic marks from text.
// Falls back to the input unchanged if transformation fails.
func StripAccents(text string) string {
	out, _, err := transform.String(accentStripper, text)
	if err != nil {
		return text
	}
	return out
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[token]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
