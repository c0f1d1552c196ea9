// Package biblio matches free-form citation fields against a loaded
// bibliography using accent-insensitive heuristic scoring, and formats
// the winning entries as markdown references.
package biblio

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, strips diacritics (NFKD + combining-mark
// removal), replaces every non-alphanumeric run with a single space and
// trims. Portuguese bibliographies carry heavy accenting, so all
// matching happens on this form.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ""
	}
	decomposed := norm.NFKD.String(lowered)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize returns the normalized word tokens of text.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// titleStopwords are Portuguese articles and prepositions ignored by
// the lexical-precision component of the title score.
var titleStopwords = map[string]bool{
	"a": true, "as": true, "o": true, "os": true,
	"de": true, "do": true, "da": true, "dos": true, "das": true,
	"e": true, "em": true, "no": true, "na": true, "nos": true, "nas": true,
	"um": true, "uma": true,
}
