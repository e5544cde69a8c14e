package retrieve

import (
	"context"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
)

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index searches the chunk corpus by vector similarity.
type Index interface {
	SearchKNN(ctx context.Context, vector []float32, k int) ([]chunk.Chunk, error)
}
