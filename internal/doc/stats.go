package doc

import (
	"strings"
	"unicode"
)

// charsPerPage is the estimation divisor for the page count; the engine
// has no page layout, so pages are approximated from character volume.
const charsPerPage = 3000

// DocumentStats summarizes a document's plain-text rendering. Derived
// fresh on every request, never cached.
type DocumentStats struct {
	Pages             int `json:"pages"`
	Paragraphs        int `json:"paragraphs"`
	Words             int `json:"words"`
	Symbols           int `json:"symbols"`
	SymbolsWithSpaces int `json:"symbolsWithSpaces"`
}

// ComputeStats derives statistics from a plain-text rendering of the
// document. Paragraphs come from blank-line splitting, words from
// whitespace tokenization, pages from ceil(symbolsWithSpaces/3000) with
// a floor of one page whenever any content exists.
func ComputeStats(text string) DocumentStats {
	stats := DocumentStats{}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return stats
	}

	for _, block := range strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(block) != "" {
			stats.Paragraphs++
		}
	}
	stats.Words = len(strings.Fields(trimmed))
	for _, r := range text {
		stats.SymbolsWithSpaces++
		if !unicode.IsSpace(r) {
			stats.Symbols++
		}
	}
	stats.Pages = (stats.SymbolsWithSpaces + charsPerPage - 1) / charsPerPage
	if stats.Pages < 1 {
		stats.Pages = 1
	}
	return stats
}
