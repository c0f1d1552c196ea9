package search

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"ghostwriter/api/internal/biblio"
)

// ErrEmptyCorpus reports a random draw over an unloaded corpus.
var ErrEmptyCorpus = errors.New("search: pensata corpus is empty")

// Local implements Searcher over an in-memory corpus. It backs random
// draws and serves as the fallback when Meilisearch is unreachable.
type Local struct {
	mu       sync.RWMutex
	pensatas []Pensata
}

func NewLocal() *Local {
	return &Local{}
}

// Load replaces the corpus.
func (l *Local) Load(pensatas []Pensata) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pensatas = append([]Pensata(nil), pensatas...)
}

// Size reports the loaded corpus size.
func (l *Local) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pensatas)
}

// Healthy always reports true; the in-memory corpus cannot go away.
func (l *Local) Healthy() bool {
	return true
}

type scoredHit struct {
	pensata Pensata
	score   float64
}

// Search ranks pensatas by accent-insensitive token overlap between the
// query and the title+text, with a small bonus for the whole query
// appearing as a phrase.
func (l *Local) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	queryNorm := biblio.Normalize(q.Text)

	l.mu.RLock()
	var hits []scoredHit
	for _, p := range l.pensatas {
		if q.FilterBook != "" && p.Book != q.FilterBook {
			continue
		}
		haystack := p.Title + " " + p.Text
		score := biblio.WholeWordOverlap(q.Text, haystack)
		if strings.Contains(biblio.Normalize(haystack), queryNorm) {
			score += 0.25
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, scoredHit{pensata: p, score: score})
	}
	l.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	total := len(hits)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	results := make([]Result, 0, end-offset)
	for _, h := range hits[offset:end] {
		results = append(results, Result{Pensata: h.pensata, Snippet: h.pensata.Text})
	}
	return results, total, nil
}

// Random draws one pensata uniformly, optionally restricted to a book.
func (l *Local) Random(book string) (RandomPick, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pool []Pensata
	if book == "" {
		pool = l.pensatas
	} else {
		for _, p := range l.pensatas {
			if p.Book == book {
				pool = append(pool, p)
			}
		}
	}
	if len(pool) == 0 {
		return RandomPick{}, ErrEmptyCorpus
	}

	idx := rand.Intn(len(pool))
	picked := pool[idx]
	return RandomPick{
		Paragraph: picked.Formatted(),
		Number:    idx + 1,
		Total:     len(pool),
		Source:    picked.Book,
	}, nil
}
