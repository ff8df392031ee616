package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the sequence-matching ratio 2*M/T of two strings,
// compared character by character. Identical strings score 1.0.
func Similarity(a, b string) float64 {
	// Split on runes so that diacritics count as one character
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// MatchRatio scores a station name against its element's name tag.
// It is 0 when there is no element or the element has no name.
func MatchRatio(m Match) float64 {
	name, ok := m.Element.Tag("name")
	if !ok {
		return 0
	}
	return Similarity(m.Station.Name, name)
}

// Enrich sets Ratio on every match. It must run once, before rendering.
func Enrich(matches []Match) {
	for i := range matches {
		matches[i].Ratio = MatchRatio(matches[i])
	}
}
