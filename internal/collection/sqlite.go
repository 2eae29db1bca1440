package collection

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/meibo/internal/models"
)

// SQLiteCollection is a persistent Collection backed by SQLite. Embeddings
// are stored as little-endian float32 blobs and metadata as a JSON object.
// k-NN queries scan all entries and rank by cosine distance; suitable for
// registry-sized collections (hundreds to low thousands of entries).
type SQLiteCollection struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteCollection opens or creates the database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteCollection(dbPath string, dimensions int) (*SQLiteCollection, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", models.ErrStore)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %v", models.ErrStore, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", models.ErrStore, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", models.ErrStore, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", models.ErrStore, err)
	}
	return &SQLiteCollection{db: db, dimensions: dimensions}, nil
}

// Upsert inserts or replaces the entry with the same id in a single statement.
func (c *SQLiteCollection) Upsert(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry id is required", models.ErrStore)
	}
	if len(entry.Embedding) != c.dimensions {
		return fmt.Errorf("%w: embedding dimension mismatch: got %d, expected %d",
			models.ErrStore, len(entry.Embedding), c.dimensions)
	}
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", models.ErrStore, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO entries (id, document, metadata, embedding)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP`,
		entry.ID, entry.Document, string(metadataJSON), float32SliceToBytes(entry.Embedding),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", models.ErrStore, entry.ID, err)
	}
	return nil
}

// Delete removes the entry if present; a missing id is a no-op.
func (c *SQLiteCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete %s: %v", models.ErrStore, id, err)
	}
	return nil
}

// DeleteWhere removes all entries matching pred inside one transaction.
func (c *SQLiteCollection) DeleteWhere(ctx context.Context, pred Predicate) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin delete: %v", models.ErrStore, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, metadata FROM entries ORDER BY rowid`)
	if err != nil {
		return 0, fmt.Errorf("%w: scan entries: %v", models.ErrStore, err)
	}
	var matched []string
	for rows.Next() {
		var id, metadataJSON string
		if err := rows.Scan(&id, &metadataJSON); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: scan entry: %v", models.ErrStore, err)
		}
		md, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			rows.Close()
			return 0, err
		}
		if pred(id, md) {
			matched = append(matched, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: scan entries: %v", models.ErrStore, err)
	}

	for _, id := range matched {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("%w: delete %s: %v", models.ErrStore, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit delete: %v", models.ErrStore, err)
	}
	return len(matched), nil
}

// Get returns the entry with the given id, or ErrNotFound.
func (c *SQLiteCollection) Get(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	var metadataJSON string
	var embeddingBlob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT id, document, metadata, embedding FROM entries WHERE id = ?`, id,
	).Scan(&entry.ID, &entry.Document, &metadataJSON, &embeddingBlob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: entry %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", models.ErrStore, id, err)
	}
	if entry.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	entry.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &entry, nil
}

// GetAll returns every entry in insertion (rowid) order.
func (c *SQLiteCollection) GetAll(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding FROM entries ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", models.ErrStore, err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		var entry Entry
		var metadataJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&entry.ID, &entry.Document, &metadataJSON, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", models.ErrStore, err)
		}
		if entry.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}
		entry.Embedding = bytesToFloat32Slice(embeddingBlob)
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", models.ErrStore, err)
	}
	return out, nil
}

// Count returns the number of entries.
func (c *SQLiteCollection) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", models.ErrStore, err)
	}
	return n, nil
}

// Query scans all entries and returns up to k hits ascending by cosine
// distance, ties broken by rowid order.
func (c *SQLiteCollection) Query(ctx context.Context, embedding []float32, k int) ([]*Hit, error) {
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d",
			models.ErrStore, len(embedding), c.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	entries, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	hits := make([]*Hit, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, &Hit{
			ID:       entry.ID,
			Document: entry.Document,
			Metadata: entry.Metadata,
			Distance: CosineDistance(embedding, entry.Embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Close closes the underlying database.
func (c *SQLiteCollection) Close() error {
	return c.db.Close()
}

func unmarshalMetadata(metadataJSON string) (map[string]string, error) {
	if metadataJSON == "" || metadataJSON == "null" {
		return nil, nil
	}
	var md map[string]string
	if err := json.Unmarshal([]byte(metadataJSON), &md); err != nil {
		return nil, fmt.Errorf("%w: unmarshal metadata: %v", models.ErrStore, err)
	}
	return md, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
