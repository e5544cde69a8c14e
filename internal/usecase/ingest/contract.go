package ingest

import (
	"context"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
)

// Embedder vectorizes chunk text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository persists chunks and their vectors.
type Repository interface {
	Upsert(ctx context.Context, c *chunk.Chunk, vector []float32) error
	GetDocument(ctx context.Context, documentID string) ([]chunk.Chunk, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Count(ctx context.Context) (int, error)
	Reindex(ctx context.Context) error
}
