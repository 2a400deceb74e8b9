package usecase

import (
	"strings"
	"unicode"
)

// tokenizeLower splits text into lower-cased word tokens. Unlike a plain
// ASCII splitter this keeps Hangul and other letter scripts intact, which
// matters for the Korean-heavy query mix this engine serves.
func tokenizeLower(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenizeLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// tokenJaccard measures near-duplication between two queries.
func tokenJaccard(a, b string) float64 {
	setA := toTokenSet(a)
	setB := toTokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// tokenOverlap is the fraction of query tokens present in the text.
func tokenOverlap(query, text string) float64 {
	queryTokens := toTokenSet(query)
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := toTokenSet(text)
	matches := 0
	for token := range queryTokens {
		if _, ok := textTokens[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}
