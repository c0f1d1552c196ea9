package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory scorer.
type Service struct {
	meili *Meili
	local *Local
}

// NewService creates a search service. meili may be nil when
// Meilisearch is not configured.
func NewService(meili *Meili, local *Local) *Service {
	if local == nil {
		local = NewLocal()
	}
	return &Service{meili: meili, local: local}
}

// Search tries Meilisearch if healthy, otherwise the local corpus.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to local corpus: %v", err)
	}

	results, total, err := s.local.Search(q)
	if err != nil {
		log.Printf("search: local search error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// LoadCorpus loads the pensata corpus into the local scorer and pushes
// it to Meilisearch when reachable (fire-and-forget).
func (s *Service) LoadCorpus(pensatas []Pensata) {
	s.local.Load(pensatas)

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPensatas(pensatas); err != nil {
			log.Printf("search: index pensatas: %v", err)
		}
	}()
}

// CorpusSize reports how many pensatas the local corpus holds.
func (s *Service) CorpusSize() int {
	return s.local.Size()
}

// RandomPensata draws one pensata uniformly from the local corpus,
// optionally restricted to a book. Random draws never round-trip to
// Meilisearch.
func (s *Service) RandomPensata(book string) (RandomPick, error) {
	return s.local.Random(book)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
