// Package search provides the semantic query engine over the vector
// collection.
package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/meibo/internal/collection"
	"github.com/hyperjump/meibo/internal/embedding"
	"github.com/hyperjump/meibo/internal/models"
)

// Engine answers semantic queries: embed the query text, delegate to the
// collection's k-NN search, and return its ranking unmodified. No
// re-ranking, filtering, or deduplication happens here.
type Engine struct {
	collection collection.Collection
	embedder   embedding.Embedder
	logger     *zap.Logger
}

// NewEngine creates a query engine with the given dependencies.
func NewEngine(col collection.Collection, emb embedding.Embedder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{collection: col, embedder: emb, logger: logger}
}

// Query validates the request, embeds the query text, and returns up to
// NResults matches sorted ascending by distance. The request is re-validated
// here even when the transport layer already did, so direct callers get the
// same guarantees.
func (e *Engine) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	emb, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := e.collection.Query(ctx, emb, req.NResults)
	if err != nil {
		return nil, err
	}
	results := make([]*models.QueryResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &models.QueryResult{
			Document: hit.Document,
			Metadata: hit.Metadata,
			Distance: hit.Distance,
		})
	}
	e.logger.Debug("query answered",
		zap.String("query", req.Query),
		zap.Int("n_results", req.NResults),
		zap.Int("matches", len(results)))
	return &models.QueryResponse{Query: req.Query, Results: results}, nil
}
