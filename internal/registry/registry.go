package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/meibo/internal/collection"
	"github.com/hyperjump/meibo/internal/embedding"
	"github.com/hyperjump/meibo/internal/models"
)

// Manager orchestrates registry initialization and the add/remove/list
// lifecycle of schema-backed entries, plus ad hoc documents outside the
// registry namespace. It holds no state of its own beyond its dependencies;
// the collection is the source of truth.
type Manager struct {
	collection collection.Collection
	embedder   embedding.Embedder
	canonical  []*models.TableSchema
	logger     *zap.Logger
}

// NewManager creates a manager over the given collection and embedder.
// canonical is the baseline schema set used by Initialize and Reinitialize.
func NewManager(col collection.Collection, emb embedding.Embedder, canonical []*models.TableSchema, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		collection: col,
		embedder:   emb,
		canonical:  canonical,
		logger:     logger,
	}
}

// Initialize registers every canonical schema whose entry is not already
// present, detected by id. Idempotent: repeated calls with an unchanged
// canonical set leave the collection unchanged. Schemas are processed
// independently; the first failure is returned but earlier upserts remain
// applied.
func (m *Manager) Initialize(ctx context.Context) error {
	for _, schema := range m.canonical {
		entry, err := Encode(schema)
		if err != nil {
			return err
		}
		if _, err := m.collection.Get(ctx, entry.ID); err == nil {
			continue
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if err := m.upsert(ctx, entry); err != nil {
			return err
		}
		m.logger.Info("registered canonical table",
			zap.String("id", entry.ID),
			zap.String("table", schema.Name))
	}
	return nil
}

// AddTable encodes, embeds, and upserts the schema. An existing entry with
// the same derived id is replaced, never duplicated.
func (m *Manager) AddTable(ctx context.Context, schema *models.TableSchema) (*models.RegistryEntry, error) {
	entry, err := Encode(schema)
	if err != nil {
		return nil, err
	}
	if err := m.upsert(ctx, entry); err != nil {
		return nil, err
	}
	m.logger.Info("table registered", zap.String("id", entry.ID))
	return entry, nil
}

// upsert embeds the entry's document and writes it to the collection. The
// embedding is always regenerated from the current document text.
func (m *Manager) upsert(ctx context.Context, entry *models.RegistryEntry) error {
	emb, err := m.embedder.Embed(ctx, entry.Document)
	if err != nil {
		return err
	}
	entry.Embedding = emb
	return m.collection.Upsert(ctx, &collection.Entry{
		ID:        entry.ID,
		Document:  entry.Document,
		Metadata:  entry.Metadata,
		Embedding: entry.Embedding,
	})
}

// RemoveTable deletes the entry derived from name. A missing entry is a
// successful no-op.
func (m *Manager) RemoveTable(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: table_name is required", models.ErrInvalidSchema)
	}
	return m.collection.Delete(ctx, TableID(name))
}

// ListTables returns the table names of all registry-namespace entries.
// Order follows the collection's store order.
func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	entries, err := m.collection.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !IsRegistryID(entry.ID) {
			continue
		}
		if name, ok := entry.Metadata["table_name"]; ok {
			names = append(names, name)
		} else {
			names = append(names, strings.TrimPrefix(entry.ID, IDPrefix))
		}
	}
	return names, nil
}

// Reinitialize clears all registry-namespace entries and re-registers the
// canonical set. The clear is scoped to the reserved id prefix, so ad hoc
// documents outside the registry namespace survive. Returns the number of
// entries removed by the clear.
func (m *Manager) Reinitialize(ctx context.Context) (int, error) {
	removed, err := m.collection.DeleteWhere(ctx, func(id string, _ map[string]string) bool {
		return IsRegistryID(id)
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("registry cleared", zap.Int("removed", removed))
	if err := m.Initialize(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// AddDocument embeds and upserts an ad hoc document outside the registry
// namespace. When in.ID is empty a random id is generated. Returns the
// stored id.
func (m *Manager) AddDocument(ctx context.Context, in *models.DocumentInput) (string, error) {
	if in == nil || strings.TrimSpace(in.Document) == "" {
		return "", fmt.Errorf("%w: document text is required", models.ErrInvalidSchema)
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	metadata, err := FlattenMetadata(in.Metadata)
	if err != nil {
		return "", err
	}
	if err := m.upsert(ctx, &models.RegistryEntry{ID: id, Document: in.Document, Metadata: metadata}); err != nil {
		return "", err
	}
	m.logger.Info("document added", zap.String("id", id))
	return id, nil
}

// GetDocument returns the entry with the given id, or ErrNotFound.
func (m *Manager) GetDocument(ctx context.Context, id string) (*models.RegistryEntry, error) {
	entry, err := m.collection.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.RegistryEntry{
		ID:       entry.ID,
		Document: entry.Document,
		Metadata: entry.Metadata,
	}, nil
}

// DeleteDocument removes the entry with the given id. A missing id is a
// successful no-op.
func (m *Manager) DeleteDocument(ctx context.Context, id string) error {
	return m.collection.Delete(ctx, id)
}

// Reset clears the entire collection, including ad hoc documents. Returns
// the number of entries removed. Destructive; exposed only on the admin
// surface.
func (m *Manager) Reset(ctx context.Context) (int, error) {
	removed, err := m.collection.DeleteWhere(ctx, func(string, map[string]string) bool { return true })
	if err != nil {
		return 0, err
	}
	m.logger.Warn("collection reset", zap.Int("removed", removed))
	return removed, nil
}

// CountEntries returns the total number of entries in the collection.
func (m *Manager) CountEntries(ctx context.Context) (int64, error) {
	return m.collection.Count(ctx)
}
