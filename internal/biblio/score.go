package biblio

import (
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var differ = diffmatchpatch.New()

// SeqRatio is the classic sequence-similarity ratio over normalized
// strings: twice the matched length divided by the combined length.
func SeqRatio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	return ratioNormalized(na, nb)
}

func ratioNormalized(na, nb string) float64 {
	diffs := differ.DiffMain(na, nb, false)
	common := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	return 2 * float64(common) / float64(len(na)+len(nb))
}

// WholeWordOverlap is the fraction of query tokens present verbatim in
// the candidate.
func WholeWordOverlap(query, candidate string) float64 {
	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return 0
	}
	cTokens := map[string]bool{}
	for _, t := range Tokenize(candidate) {
		cTokens[t] = true
	}
	hits := 0
	for _, t := range qTokens {
		if cTokens[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}

// PartialTokenScore is the fraction of query tokens that appear as
// substrings of the normalized candidate.
func PartialTokenScore(query, candidate string) float64 {
	qTokens := Tokenize(query)
	cNorm := Normalize(candidate)
	if len(qTokens) == 0 || cNorm == "" {
		return 0
	}
	hits := 0
	for _, t := range qTokens {
		if strings.Contains(cNorm, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}

// FuzzyTokenRecall measures coverage of query tokens by the best
// matching candidate token. Tokens below minRatio earn half credit of
// their best ratio, which tolerates light typos in author and title.
func FuzzyTokenRecall(query, candidate string, minRatio float64) float64 {
	qTokens := Tokenize(query)
	cTokens := Tokenize(candidate)
	if len(qTokens) == 0 || len(cTokens) == 0 {
		return 0
	}
	var hits float64
	for _, qt := range qTokens {
		best := 0.0
		for _, ct := range cTokens {
			r := ratioNormalized(qt, ct)
			if r > best {
				best = r
			}
			if best >= 1.0 {
				break
			}
		}
		if best >= minRatio {
			hits++
		} else {
			hits += best * 0.5
		}
	}
	return hits / float64(len(qTokens))
}

// AuthorLastNameScore rewards matching the query author's main surname
// (last token). Near matches below 0.85 count as zero.
func AuthorLastNameScore(queryAuthor, candidateAuthor string) float64 {
	qTokens := Tokenize(queryAuthor)
	cTokens := Tokenize(candidateAuthor)
	if len(qTokens) == 0 || len(cTokens) == 0 {
		return 0
	}
	qLast := qTokens[len(qTokens)-1]
	best := 0.0
	for _, ct := range cTokens {
		if ct == qLast {
			return 1
		}
		if r := ratioNormalized(qLast, ct); r > best {
			best = r
		}
	}
	if best >= 0.85 {
		return best
	}
	return 0
}

// YearScore scores proximity between the queried and candidate years:
// exact 1.0, off-by-one 0.6, within three 0.3.
func YearScore(queryYear string, candidateYear int) float64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, queryYear)
	if digits == "" {
		return 0
	}
	q, err := strconv.Atoi(digits)
	if err != nil || candidateYear == 0 {
		return 0
	}
	switch delta := abs(q - candidateYear); {
	case delta == 0:
		return 1
	case delta == 1:
		return 0.6
	case delta <= 3:
		return 0.3
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FieldScore combines global similarity with whole-word and partial
// token overlap, taking the most favorable blend.
func FieldScore(query, candidate string) float64 {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	seq := SeqRatio(query, candidate)
	whole := WholeWordOverlap(query, candidate)
	part := PartialTokenScore(query, candidate)
	return max3(
		seq,
		0.70*whole+0.30*seq,
		0.55*whole+0.25*seq+0.20*part,
	)
}

// TitleScore layers fuzzy token recall and a stopword-free lexical
// precision signal on top of the base field score.
func TitleScore(query, candidate string) float64 {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	base := FieldScore(query, candidate)
	fuzzy := FuzzyTokenRecall(query, candidate, 0.80)

	var meaningful []string
	for _, t := range Tokenize(query) {
		if !titleStopwords[t] {
			meaningful = append(meaningful, t)
		}
	}
	cTokens := map[string]bool{}
	for _, t := range Tokenize(candidate) {
		cTokens[t] = true
	}
	lexical := 0.0
	if len(meaningful) > 0 {
		hits := 0
		for _, t := range meaningful {
			if cTokens[t] {
				hits++
			}
		}
		lexical = float64(hits) / float64(len(meaningful))
	}
	return 0.55*base + 0.35*fuzzy + 0.10*lexical
}

// AuthorScore blends the base field score with fuzzy recall and the
// surname signal.
func AuthorScore(query, candidate string) float64 {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	base := FieldScore(query, candidate)
	fuzzy := FuzzyTokenRecall(query, candidate, 0.84)
	lname := AuthorLastNameScore(query, candidate)
	return 0.50*base + 0.30*fuzzy + 0.20*lname
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
