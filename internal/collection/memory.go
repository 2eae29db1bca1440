package collection

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/meibo/internal/models"
)

// MemoryCollection is an in-memory Collection for tests and ephemeral runs.
// Entries are kept in insertion order so that GetAll and query tie-breaking
// are deterministic.
type MemoryCollection struct {
	dimensions int
	mu         sync.RWMutex
	entries    map[string]*Entry
	order      []string
}

// NewMemoryCollection creates an empty in-memory collection. Embeddings must
// have the given dimensionality.
func NewMemoryCollection(dimensions int) *MemoryCollection {
	return &MemoryCollection{
		dimensions: dimensions,
		entries:    make(map[string]*Entry),
	}
}

// Upsert inserts or replaces the entry with the same id.
func (c *MemoryCollection) Upsert(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry id is required", models.ErrStore)
	}
	if len(entry.Embedding) != c.dimensions {
		return fmt.Errorf("%w: embedding dimension mismatch: got %d, expected %d",
			models.ErrStore, len(entry.Embedding), c.dimensions)
	}
	stored := &Entry{
		ID:        entry.ID,
		Document:  entry.Document,
		Metadata:  copyMetadata(entry.Metadata),
		Embedding: append([]float32(nil), entry.Embedding...),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[entry.ID]; !ok {
		c.order = append(c.order, entry.ID)
	}
	c.entries[entry.ID] = stored
	return nil
}

// Delete removes the entry if present; a missing id is a no-op.
func (c *MemoryCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	return nil
}

// DeleteWhere removes all entries matching pred.
func (c *MemoryCollection) DeleteWhere(ctx context.Context, pred Predicate) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []string
	for _, id := range c.order {
		if pred(id, c.entries[id].Metadata) {
			matched = append(matched, id)
		}
	}
	for _, id := range matched {
		c.removeLocked(id)
	}
	return len(matched), nil
}

func (c *MemoryCollection) removeLocked(id string) {
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Get returns the entry with the given id, or ErrNotFound.
func (c *MemoryCollection) Get(ctx context.Context, id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: entry %s", models.ErrNotFound, id)
	}
	return &Entry{
		ID:        entry.ID,
		Document:  entry.Document,
		Metadata:  copyMetadata(entry.Metadata),
		Embedding: append([]float32(nil), entry.Embedding...),
	}, nil
}

// GetAll returns every entry in insertion order.
func (c *MemoryCollection) GetAll(ctx context.Context) ([]*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entry, 0, len(c.order))
	for _, id := range c.order {
		entry := c.entries[id]
		out = append(out, &Entry{
			ID:        entry.ID,
			Document:  entry.Document,
			Metadata:  copyMetadata(entry.Metadata),
			Embedding: append([]float32(nil), entry.Embedding...),
		})
	}
	return out, nil
}

// Count returns the number of entries.
func (c *MemoryCollection) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.entries)), nil
}

// Query returns up to k hits sorted ascending by distance, ties broken by
// insertion order.
func (c *MemoryCollection) Query(ctx context.Context, embedding []float32, k int) ([]*Hit, error) {
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d",
			models.ErrStore, len(embedding), c.dimensions)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if k <= 0 || len(c.order) == 0 {
		return nil, nil
	}
	hits := make([]*Hit, 0, len(c.order))
	for _, id := range c.order {
		entry := c.entries[id]
		hits = append(hits, &Hit{
			ID:       entry.ID,
			Document: entry.Document,
			Metadata: copyMetadata(entry.Metadata),
			Distance: CosineDistance(embedding, entry.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Close is a no-op for MemoryCollection.
func (c *MemoryCollection) Close() error {
	return nil
}
