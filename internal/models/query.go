package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultQueryResults is used when a query request leaves NResults unset.
	DefaultQueryResults = 3
	// MaxQueryResults bounds how many results a single query may request.
	MaxQueryResults = 20
)

// QueryRequest is a semantic query against the collection.
type QueryRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results,omitempty"`
}

// Validate checks the request and applies the default result count.
// Returns ErrInvalidQuery for an empty query or an out-of-range NResults.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.NResults == 0 {
		q.NResults = DefaultQueryResults
	}
	if q.NResults < 1 || q.NResults > MaxQueryResults {
		return fmt.Errorf("%w: n_results must be between 1 and %d", ErrInvalidQuery, MaxQueryResults)
	}
	return nil
}

// QueryResult is a single ranked match. Distance is non-negative; smaller
// means more similar.
type QueryResult struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// QueryResponse is the response for a query request. Results are sorted
// ascending by distance.
type QueryResponse struct {
	Query   string         `json:"query"`
	Results []*QueryResult `json:"results"`
}
