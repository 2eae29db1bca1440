// Package integration provides end-to-end tests (requires real storage).
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/meibo/internal/collection"
	"github.com/hyperjump/meibo/internal/embedding"
	"github.com/hyperjump/meibo/internal/models"
	"github.com/hyperjump/meibo/internal/registry"
	"github.com/hyperjump/meibo/internal/search"
)

func TestIntegration_RegistryLifecycle(t *testing.T) {
	dir := t.TempDir()
	dims := 16

	col, err := collection.NewSQLiteCollection(filepath.Join(dir, "registry.db"), dims)
	if err != nil {
		t.Fatal(err)
	}
	defer col.Close()

	embedder := embedding.NewMockEmbedder(dims)
	defer embedder.Close()

	canonical := []*models.TableSchema{
		{Name: "patients", Description: "Patient master records including prescribed medication",
			Columns: []models.ColumnSchema{{Name: "patient_id", Type: "uuid"}, {Name: "medication", Type: "text"}}},
		{Name: "visits", Description: "Clinical visit log",
			Columns: []models.ColumnSchema{{Name: "visit_id", Type: "uuid"}}},
	}
	manager := registry.NewManager(col, embedder, canonical, nil)
	engine := search.NewEngine(col, embedder, nil)
	ctx := context.Background()

	if err := manager.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.AddTable(ctx, &models.TableSchema{Name: "billing", Description: "Invoices"}); err != nil {
		t.Fatal(err)
	}

	tables, err := manager.ListTables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 3 {
		t.Fatalf("tables=%v, want 3", tables)
	}

	entry, err := manager.GetDocument(ctx, "table_patients")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := engine.Query(ctx, &models.QueryRequest{Query: entry.Document, NResults: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results=%d, want 3", len(resp.Results))
	}
	if resp.Results[0].Metadata["table_name"] != "patients" {
		t.Errorf("top result=%v", resp.Results[0].Metadata)
	}

	removed, err := manager.Reinitialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("removed=%d, want 3", removed)
	}
	tables, _ = manager.ListTables(ctx)
	if len(tables) != 2 {
		t.Errorf("tables after reinitialize=%v, want canonical 2", tables)
	}
}

func TestIntegration_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dims := 16
	path := filepath.Join(dir, "registry.db")
	ctx := context.Background()

	col, err := collection.NewSQLiteCollection(path, dims)
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(dims)
	defer embedder.Close()
	manager := registry.NewManager(col, embedder, nil, nil)
	if _, err := manager.AddTable(ctx, &models.TableSchema{Name: "orders"}); err != nil {
		t.Fatal(err)
	}
	if err := col.Close(); err != nil {
		t.Fatal(err)
	}

	col2, err := collection.NewSQLiteCollection(path, dims)
	if err != nil {
		t.Fatal(err)
	}
	defer col2.Close()
	manager2 := registry.NewManager(col2, embedder, nil, nil)
	tables, err := manager2.ListTables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 || tables[0] != "orders" {
		t.Errorf("tables after reopen=%v", tables)
	}
}
