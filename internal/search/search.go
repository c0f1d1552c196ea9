// Package search serves lexical queries over the pensata corpus, via
// Meilisearch when available with an in-memory fallback scorer.
package search

import "strings"

// Pensata is one indexed aphorism paragraph from a source book.
type Pensata struct {
	ID     string `json:"id"`
	Book   string `json:"book"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Formatted renders the house presentation: bold title, period, text.
func (p Pensata) Formatted() string {
	title := strings.TrimSpace(p.Title)
	text := strings.TrimSpace(p.Text)
	if title == "" {
		return text
	}
	return "**" + title + ".** " + text
}

// Query describes a lexical search request.
type Query struct {
	Text       string
	FilterBook string // empty = all books
	Limit      int
	Offset     int
}

// Result is a single search hit returned to the caller.
type Result struct {
	Pensata
	Snippet string `json:"snippet"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// RandomPick is one randomly drawn pensata with corpus coordinates.
type RandomPick struct {
	Paragraph string `json:"paragraph"`
	Number    int    `json:"paragraphNumber"`
	Total     int    `json:"totalParagraphs"`
	Source    string `json:"source"`
}

// Searcher can execute a lexical search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
