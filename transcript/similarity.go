package transcript

import (
	"strings"
	"unicode"
)

// Similarity scores how alike two strings are on a 0-100 scale.
//
// The metric is deliberately cheap. After normalization it
// short-circuits on exact match (100) and containment (length ratio of
// shorter to longer), then falls back to counting positionally equal
// characters over the overlapping prefix, divided by the longer length.
// The fallback is not an edit distance: an insertion near the front of
// one string shifts everything after it and the score collapses, so
// shifted near-duplicates under-count. Callers depend on the two
// short-circuits and on the 90-point duplicate threshold; those are
// fixed, the fallback metric is not.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 100 * float64(len(shorter)) / float64(len(longer))
	}

	matches := 0
	for i := 0; i < len(shorter); i++ {
		if shorter[i] == longer[i] {
			matches++
		}
	}
	return 100 * float64(matches) / float64(len(longer))
}

// Normalize lowercases, strips punctuation and symbols, and collapses
// runs of whitespace to single spaces.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
