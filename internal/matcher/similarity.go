// Package matcher pairs markets from different venues that describe the
// same event, and sorts titles into topic categories.
package matcher

import (
	"strings"
	"unicode"
)

const (
	// minLengthRatio short-circuits pairs whose normalized titles differ
	// too much in length.
	minLengthRatio = 0.3
	minTokenLen    = 3
	stemPrefixLen  = 5
	maxTokenWeight = 3.0
)

// Similarity scores how well title b covers the keywords of title a, in
// [0,1].
//
// The score is asymmetric: tokens of a set the weights, so
// Similarity(a, b) and Similarity(b, a) can differ. Callers pass the
// candidate title first.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	la, lb := len(na), len(nb)

	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 || float64(shorter)/float64(longer) < minLengthRatio {
		return 0
	}

	first := uniqueTokens(na)
	second := uniqueTokens(nb)

	var total, matched float64
	for _, w1 := range first {
		weight := float64(len(w1)) / 3
		if weight > maxTokenWeight {
			weight = maxTokenWeight
		}
		total += weight
		for _, w2 := range second {
			if tokensMatch(w1, w2) {
				matched += weight
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// Normalize lowercases s, drops every character other than ASCII letters,
// digits and whitespace, and trims the result.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// uniqueTokens splits a normalized title on whitespace and keeps the first
// occurrence of each token longer than two characters.
func uniqueTokens(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	seen := NewSet[string]()
	for _, f := range fields {
		if len(f) < minTokenLen || seen.Has(f) {
			continue
		}
		seen.Add(f)
		out = append(out, f)
	}
	return out
}

// tokensMatch is true on equality, containment either way, or a shared
// five-character prefix when both tokens are longer than four characters.
func tokensMatch(w1, w2 string) bool {
	if w1 == w2 || strings.Contains(w2, w1) || strings.Contains(w1, w2) {
		return true
	}
	return len(w1) > 4 && len(w2) > 4 && w1[:stemPrefixLen] == w2[:stemPrefixLen]
}
