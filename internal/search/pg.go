package search

import (
	"context"
	"fmt"

	"visaprep/api/internal/store"
	"visaprep/api/internal/summary"
)

// SubmissionLister is the store surface the fallback needs.
type SubmissionLister interface {
	SearchSubmissions(ctx context.Context, query string, limit int) ([]store.Submission, error)
	ListAllSubmissions(ctx context.Context) ([]store.Submission, error)
}

// PgFallback implements Searcher with a case-insensitive match in Postgres.
// It is always healthy: if the database is down the whole API is down anyway.
type PgFallback struct {
	store SubmissionLister
}

func NewPgFallback(lister SubmissionLister) *PgFallback {
	return &PgFallback{store: lister}
}

func (p *PgFallback) Healthy() bool {
	return true
}

func (p *PgFallback) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	items, err := p.store.SearchSubmissions(context.Background(), q.Text, limit+q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}
	if q.Offset >= len(items) {
		return []Result{}, len(items), nil
	}
	items = items[q.Offset:]

	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, Result{
			ID:         item.ID,
			OwnerID:    item.OwnerID,
			OwnerEmail: item.OwnerEmail,
			OwnerName:  item.OwnerName,
			Snippet:    snippetOf(answersBlob(item)),
			SavedAt:    item.LastModifiedISO,
		})
	}
	return results, len(results), nil
}

// LoadAllRecords reads every submission for reindexing into Meilisearch.
func (p *PgFallback) LoadAllRecords(ctx context.Context) ([]SubmissionRecord, error) {
	items, err := p.store.ListAllSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	records := make([]SubmissionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ToRecord(item))
	}
	return records, nil
}

// ToRecord flattens a submission into its indexable form.
func ToRecord(item store.Submission) SubmissionRecord {
	return SubmissionRecord{
		ID:         item.ID,
		OwnerID:    item.OwnerID,
		OwnerEmail: item.OwnerEmail,
		OwnerName:  item.OwnerName,
		Answers:    answersBlob(item),
		SavedAt:    item.LastModifiedISO,
	}
}

func answersBlob(item store.Submission) string {
	blob := ""
	for _, value := range item.Fields {
		display := summary.DisplayValue(value)
		if display == "" {
			continue
		}
		if blob != "" {
			blob += " "
		}
		blob += display
	}
	return blob
}
