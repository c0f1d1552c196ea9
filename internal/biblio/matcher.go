package biblio

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// Matching thresholds. Books get a small boost so editions of the main
// works outrank article-style entries with similar text scores.
const (
	scoreFloor = 0.03
	bookBoost  = 0.08

	authorPenaltyFactor = 0.25
	yearPenaltyFactor   = 0.15

	titleStrong = 0.70
	authorWeak  = 0.30
)

// ErrEmptyQuery rejects a match request with no populated fields.
var ErrEmptyQuery = errors.New("biblio: at least one query field is required")

// Entry is one bibliography row.
type Entry struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	Kind   string `json:"kind"` // "livro", "artigo", "verbete", ...
	Extra  string `json:"extra"`
	Year   int    `json:"year"`
	Ref    string `json:"ref"` // preformatted markdown reference
}

// Query carries the fields the user filled in; blank fields do not
// participate in scoring and their weight is redistributed.
type Query struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	Year   string `json:"year"`
	Extra  string `json:"extra"`
}

func (q Query) empty() bool {
	return strings.TrimSpace(q.Author) == "" &&
		strings.TrimSpace(q.Title) == "" &&
		strings.TrimSpace(q.Year) == "" &&
		strings.TrimSpace(q.Extra) == ""
}

// ScoredRef is one ranked match.
type ScoredRef struct {
	Score  float64 `json:"score"`
	IsBook bool    `json:"isBook"`
	Ref    string  `json:"ref"`
}

// Matcher ranks bibliography entries against a query.
type Matcher struct {
	entries []Entry
}

func NewMatcher(entries []Entry) *Matcher {
	return &Matcher{entries: entries}
}

func (m *Matcher) Len() int { return len(m.entries) }

// Search scores every entry and returns the topK above the relevance
// floor, books first via a fixed boost.
func (m *Matcher) Search(q Query, topK int) ([]ScoredRef, error) {
	if q.empty() {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 10
	}

	var matches []ScoredRef
	for _, entry := range m.entries {
		score := totalScore(q, entry)
		if score <= scoreFloor {
			continue
		}
		isBook := Normalize(entry.Kind) == "livro"
		if isBook {
			score += bookBoost
		}
		matches = append(matches, ScoredRef{
			Score:  math.Round(score*10000) / 10000,
			IsBook: isBook,
			Ref:    entry.Ref,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// totalScore weights the per-field scores, redistributing weight from
// blank query fields, then applies the author and year penalties.
func totalScore(q Query, entry Entry) float64 {
	weights := map[string]float64{
		"author": 0.55,
		"title":  0.30,
		"year":   0.12,
		"extra":  0.03,
	}
	present := map[string]bool{
		"author": strings.TrimSpace(q.Author) != "",
		"title":  strings.TrimSpace(q.Title) != "",
		"year":   strings.TrimSpace(q.Year) != "",
		"extra":  strings.TrimSpace(q.Extra) != "",
	}
	active := 0.0
	for field, w := range weights {
		if present[field] {
			active += w
		}
	}
	if active <= 0 {
		return 0
	}

	sTitle := TitleScore(q.Title, entry.Title)
	sAuthor := AuthorScore(q.Author, entry.Author)
	sYear := YearScore(q.Year, entry.Year)
	sExtra := FieldScore(q.Extra, entry.Extra)

	score := 0.0
	if present["title"] {
		score += weights["title"] / active * sTitle
	}
	if present["author"] {
		score += weights["author"] / active * sAuthor
	}
	if present["year"] {
		score += weights["year"] / active * sYear
	}
	if present["extra"] {
		score += weights["extra"] / active * sExtra
	}

	score = applyAuthorPenalty(score, sAuthor, sTitle, q.Author)
	score = applyYearPenalty(score, sYear, q.Year, sAuthor, sTitle)
	return score
}

// applyAuthorPenalty punishes entries whose title matches strongly
// while the requested author does not.
func applyAuthorPenalty(score, authorScore, titleScore float64, authorQuery string) float64 {
	if strings.TrimSpace(authorQuery) == "" {
		return score
	}
	if titleScore >= titleStrong && authorScore <= authorWeak {
		score -= (1 - authorScore) * authorPenaltyFactor
	}
	if score < 0 {
		return 0
	}
	return score
}

// applyYearPenalty punishes a stated year that found no match, scaled
// up when author or title matched confidently.
func applyYearPenalty(score, yearScore float64, yearQuery string, authorScore, titleScore float64) float64 {
	if strings.TrimSpace(yearQuery) == "" {
		return score
	}
	if yearScore == 0 {
		confidence := authorScore
		if titleScore > confidence {
			confidence = titleScore
		}
		score -= yearPenaltyFactor * (1.0 + 0.5*confidence)
	}
	if score < 0 {
		return 0
	}
	return score
}
