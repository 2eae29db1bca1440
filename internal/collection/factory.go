package collection

import (
	"context"
	"fmt"
)

// BackendType identifies a collection backend.
type BackendType string

const (
	// BackendSQLite stores entries in a local SQLite database (default).
	BackendSQLite BackendType = "sqlite"
	// BackendMemory keeps entries in process memory. Good for tests.
	BackendMemory BackendType = "memory"
	// BackendQdrant delegates to a remote Qdrant instance over grpc.
	BackendQdrant BackendType = "qdrant"
)

// Options configures backend construction.
type Options struct {
	// Name is the logical collection name (used by the qdrant backend).
	Name string
	// Path is the SQLite database file path.
	Path string
	// Dimensions is the embedding dimensionality all entries must match.
	Dimensions int
	// QdrantHost and QdrantPort locate the remote Qdrant instance.
	QdrantHost string
	QdrantPort int
}

// New creates a collection of the given backend type.
// Supported backends: "sqlite" (default), "memory", "qdrant".
func New(ctx context.Context, backend string, o Options) (Collection, error) {
	switch BackendType(backend) {
	case BackendSQLite, "":
		return NewSQLiteCollection(o.Path, o.Dimensions)
	case BackendMemory:
		return NewMemoryCollection(o.Dimensions), nil
	case BackendQdrant:
		return NewQdrantCollection(ctx, o.QdrantHost, o.QdrantPort, o.Name, o.Dimensions)
	default:
		return nil, fmt.Errorf("unknown collection backend: %s (supported: sqlite, memory, qdrant)", backend)
	}
}
