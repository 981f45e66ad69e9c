// Package search finds submissions for the admin view. Meilisearch is the
// primary backend with a Postgres ILIKE fallback, so the admin view stays
// usable when the search engine is down or not configured.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`
	Snippet    string `json:"snippet"`
	SavedAt    string `json:"savedAt"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the admin search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a submission search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SubmissionRecord is the data we index for a submission.
type SubmissionRecord struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`
	// Answers is the concatenated field values, kept as one searchable blob.
	Answers string `json:"answers"`
	SavedAt string `json:"savedAt"`
}
