package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder performs full Unicode case folding. cases.Fold casers are
// stateless and safe for concurrent use.
var folder = cases.Fold()

// Normalize maps a raw term to its canonical search form: NFKC
// normalization followed by case folding and whitespace trimming.
//
// Index and query paths MUST go through this exact function. Any drift
// between the two silently zeroes recall, so there is one pipeline and
// no per-path options.
func Normalize(term string) string {
	t := norm.NFKC.String(term)
	t = folder.String(t)
	return strings.TrimSpace(t)
}

// Tokenize splits free text into normalized terms on any run of
// non-letter, non-digit characters. Empty terms are dropped; duplicates
// within one input collapse to a single term.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		t := Normalize(f)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	return terms
}
