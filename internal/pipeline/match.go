package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Match relevance, strongest first: exact name, then prefix, then substring.
const (
	rankNone = iota
	rankSubstring
	rankPrefix
	rankExact
)

// foldTransformer strips diacritics so "Fundación" matches "fundacion".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func matchRank(query, name string) int {
	q := foldName(query)
	n := foldName(name)
	if q == "" || n == "" {
		return rankNone
	}
	switch {
	case n == q:
		return rankExact
	case strings.HasPrefix(n, q):
		return rankPrefix
	case strings.Contains(n, q):
		return rankSubstring
	}
	return rankNone
}
