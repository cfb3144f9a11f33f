// Package textnorm produces the canonical comparison keys used to deduplicate
// catalog names coming from the ERP feed.
//
// The output of Normalize is persisted in normalized_name columns and backs
// unique indexes, so it must stay stable across releases.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the comparison key for s: diacritics stripped, lower-cased,
// whitespace and every non letter/digit rune removed.
// The empty string maps to the empty string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// transformers carry state, build them per call
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePtr is Normalize for optional values; nil yields "".
func NormalizePtr(s *string) string {
	if s == nil {
		return ""
	}
	return Normalize(*s)
}

// Equal reports whether a and b normalize to the same non-empty key.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
