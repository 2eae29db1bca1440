// Package embedding provides text embedding via ONNX with caching, and a
// deterministic mock for tests.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. Embeddings
// are L2-normalized and deterministic for identical input strings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
