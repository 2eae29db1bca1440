package collection

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/meibo/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteCollection {
	t.Helper()
	c, err := NewSQLiteCollection(filepath.Join(t.TempDir(), "registry.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteCollection_UpsertGetCount(t *testing.T) {
	c := newTestSQLite(t)
	ctx := context.Background()

	entry := &Entry{
		ID:        "table_patients",
		Document:  "Table: patients",
		Metadata:  map[string]string{"table_name": "patients"},
		Embedding: []float32{0.5, 0.5, 0.1},
	}
	if err := c.Upsert(ctx, entry); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "table_patients")
	if err != nil {
		t.Fatal(err)
	}
	if got.Document != entry.Document {
		t.Errorf("Document=%q", got.Document)
	}
	if got.Metadata["table_name"] != "patients" {
		t.Errorf("Metadata=%v", got.Metadata)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.5 {
		t.Errorf("Embedding=%v", got.Embedding)
	}
	n, _ := c.Count(ctx)
	if n != 1 {
		t.Errorf("Count=%d", n)
	}

	// Replace, not append.
	entry.Document = "Table: patients (v2)"
	if err := c.Upsert(ctx, entry); err != nil {
		t.Fatal(err)
	}
	n, _ = c.Count(ctx)
	if n != 1 {
		t.Errorf("Count after replace=%d, want 1", n)
	}
	got, _ = c.Get(ctx, "table_patients")
	if !strings.Contains(got.Document, "v2") {
		t.Errorf("replace did not take: %q", got.Document)
	}
}

func TestSQLiteCollection_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")
	ctx := context.Background()

	c, err := NewSQLiteCollection(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Upsert(ctx, &Entry{ID: "table_orders", Document: "orders", Embedding: []float32{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := NewSQLiteCollection(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	got, err := c2.Get(ctx, "table_orders")
	if err != nil {
		t.Fatal(err)
	}
	if got.Document != "orders" {
		t.Errorf("Document=%q", got.Document)
	}
}

func TestSQLiteCollection_QueryOrder(t *testing.T) {
	c := newTestSQLite(t)
	ctx := context.Background()
	_ = c.Upsert(ctx, &Entry{ID: "far", Embedding: []float32{0, 1, 0}})
	_ = c.Upsert(ctx, &Entry{ID: "near", Embedding: []float32{1, 0, 0}})

	hits, err := c.Query(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "near" || hits[1].ID != "far" {
		t.Errorf("order: %s, %s", hits[0].ID, hits[1].ID)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("distances not ascending: %v, %v", hits[0].Distance, hits[1].Distance)
	}
}

func TestSQLiteCollection_DeleteWhereAndGetAll(t *testing.T) {
	c := newTestSQLite(t)
	ctx := context.Background()
	_ = c.Upsert(ctx, &Entry{ID: "table_a", Metadata: map[string]string{"table_name": "a"}, Embedding: []float32{1, 0, 0}})
	_ = c.Upsert(ctx, &Entry{ID: "doc-1", Embedding: []float32{0, 1, 0}})

	all, err := c.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "table_a" {
		t.Errorf("GetAll order: %+v", all)
	}

	n, err := c.DeleteWhere(ctx, func(id string, _ map[string]string) bool {
		return strings.HasPrefix(id, "table_")
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, err := c.Get(ctx, "table_a"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err=%v, want ErrNotFound", err)
	}
	if _, err := c.Get(ctx, "doc-1"); err != nil {
		t.Errorf("ad hoc doc should survive: %v", err)
	}
}

func TestSQLiteCollection_DeleteMissingIsNoop(t *testing.T) {
	c := newTestSQLite(t)
	if err := c.Delete(context.Background(), "nonexistent"); err != nil {
		t.Errorf("delete of missing id should be a no-op, got %v", err)
	}
}
