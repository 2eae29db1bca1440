package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml")
}

func TestWatcher_UpsertOnWrite(t *testing.T) {
	dir := t.TempDir()
	var upserted []string
	var mu sync.Mutex
	onUpsert := func(path string) {
		mu.Lock()
		upserted = append(upserted, path)
		mu.Unlock()
	}

	w := NewWatcher(dir, isYAML, onUpsert, nil, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "orders.yaml"), []byte("table_name: orders"), 0644); err != nil {
		t.Fatal(err)
	}
	// A non-matching file must be filtered out.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(upserted) < 1 {
		t.Fatalf("expected at least one upsert callback, got %d", len(upserted))
	}
	for _, p := range upserted {
		if !strings.HasSuffix(p, "orders.yaml") {
			t.Errorf("unexpected upsert for %s", p)
		}
	}
}

func TestWatcher_RemoveOnDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.yaml")
	if err := os.WriteFile(path, []byte("table_name: orders"), 0644); err != nil {
		t.Fatal(err)
	}

	var removed []string
	var mu sync.Mutex
	onRemove := func(p string) {
		mu.Lock()
		removed = append(removed, p)
		mu.Unlock()
	}

	w := NewWatcher(dir, isYAML, nil, onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(removed) != 1 || !strings.HasSuffix(removed[0], "orders.yaml") {
		t.Errorf("removed=%v", removed)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("table_name: a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	var upserted []string
	w := NewWatcher(dir, isYAML, func(p string) { upserted = append(upserted, p) }, nil)
	w.SyncExistingFiles()
	if len(upserted) != 1 || !strings.HasSuffix(upserted[0], "a.yaml") {
		t.Errorf("upserted=%v", upserted)
	}
}

func TestWatcher_StartCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schemas")
	w := NewWatcher(dir, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
	if w.Directory() != dir {
		t.Errorf("Directory()=%s", w.Directory())
	}
}
