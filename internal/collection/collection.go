// Package collection provides the persistent vector collection: named stores
// of (id, document, metadata, embedding) tuples with upsert, delete, and
// k-nearest-neighbor query by embedding.
package collection

import "context"

// Entry is one stored (id, document, metadata, embedding) tuple.
type Entry struct {
	ID        string
	Document  string
	Metadata  map[string]string
	Embedding []float32
}

// Hit is a single k-NN match. Distance is cosine distance over normalized
// embeddings: non-negative, smaller = more similar.
type Hit struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float64
}

// Predicate selects entries by id and metadata for bulk deletion.
type Predicate func(id string, metadata map[string]string) bool

// Collection defines vector collection operations. Each operation is
// individually atomic; no multi-operation transaction is guaranteed across
// calls.
type Collection interface {
	// Upsert inserts or atomically replaces the entry with the same id.
	Upsert(ctx context.Context, entry *Entry) error
	// Delete removes the entry if present; a missing id is a no-op.
	Delete(ctx context.Context, id string) error
	// DeleteWhere removes all entries matching pred and returns how many
	// were removed.
	DeleteWhere(ctx context.Context, pred Predicate) (int, error)
	// Get returns the entry with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)
	// GetAll returns every entry in store order.
	GetAll(ctx context.Context) ([]*Entry, error)
	// Count returns the number of entries.
	Count(ctx context.Context) (int64, error)
	// Query returns up to k hits sorted ascending by distance. Fewer than
	// k entries returns all of them.
	Query(ctx context.Context, embedding []float32, k int) ([]*Hit, error)
	Close() error
}

// CosineDistance returns 1 - dot(a, b), clamped at 0. For unit-normalized
// vectors this is the cosine distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	d := 1 - dot
	if d < 0 {
		return 0
	}
	return d
}

func copyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
