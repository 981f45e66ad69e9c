package search

import (
	"context"
	"log"

	"visaprep/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres match.
type Service struct {
	meili    *Meili
	fallback *PgFallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, fallback *PgFallback) *Service {
	s := &Service{meili: meili, fallback: fallback}
	if meili != nil {
		// Writes made while Meilisearch was down never reached the index;
		// rebuild it from the database once the backend comes back.
		meili.OnRecover(func() {
			s.ReindexAllFromStore(context.Background())
		})
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSubmission indexes a submission (fire-and-forget to Meilisearch).
func (s *Service) IndexSubmission(item store.Submission) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := ToRecord(item)
	go func() {
		if err := s.meili.IndexSubmission(rec); err != nil {
			log.Printf("search: index submission %s: %v", rec.ID, err)
		}
	}()
}

// DeleteSubmission removes a submission from the index (fire-and-forget).
func (s *Service) DeleteSubmission(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSubmission(id); err != nil {
			log.Printf("search: delete submission %s: %v", id, err)
		}
	}()
}

// DeleteAll clears the index (fire-and-forget).
func (s *Service) DeleteAll() {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAllSubmissions(); err != nil {
			log.Printf("search: delete all submissions: %v", err)
		}
	}()
}

// ReindexAllFromStore pushes every stored submission into Meilisearch.
// Called at startup and whenever the backend recovers.
func (s *Service) ReindexAllFromStore(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fallback == nil {
		return
	}
	records, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexSubmissions(records); err != nil {
		log.Printf("search: reindex submissions: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
