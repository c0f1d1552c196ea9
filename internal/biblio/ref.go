package biblio

import "strings"

// Author is one credited author, surname first.
type Author struct {
	Surname string `json:"surname"`
	Given   string `json:"given"`
}

// Reference holds the structured fields of a catalog record.
type Reference struct {
	Authors   []Author `json:"authors"`
	Title     string   `json:"title"`
	Year      string   `json:"year"`
	Publisher string   `json:"publisher,omitempty"`
	Place     string   `json:"place,omitempty"`
	Pages     string   `json:"pages,omitempty"` // e.g. "252 p."
	Journal   string   `json:"journal,omitempty"`
	Kind      string   `json:"kind"` // "livro" or "artigo"
}

// Format renders the house citation style: bold surnames, bold-italic
// title, then pages, journal, publisher, place and year joined by
// semicolons, period after the year.
func (r Reference) Format() string {
	var parts []string
	for _, a := range r.Authors {
		name := "**" + a.Surname + "**"
		if a.Given != "" {
			name += ", " + a.Given
		}
		parts = append(parts, name)
	}
	if r.Title != "" {
		parts = append(parts, "***"+r.Title+"***")
	}
	if r.Pages != "" {
		parts = append(parts, r.Pages)
	}
	if r.Journal != "" {
		parts = append(parts, r.Journal)
	}
	if r.Publisher != "" {
		parts = append(parts, r.Publisher)
	}
	if r.Place != "" {
		parts = append(parts, r.Place)
	}
	if r.Year != "" {
		parts = append(parts, r.Year+".")
	}
	return strings.Join(parts, "; ")
}
