package reflective

import (
	"context"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
)

// Retriever returns the top-k corpus chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]chunk.Chunk, error)
}

// Generator synthesizes an answer from a query and its context.
type Generator interface {
	Generate(ctx context.Context, query string, chunks []chunk.Chunk) (string, error)
}

// Reflector judges answer grounding and proposes a refined query. The
// refined query is opaque to the controller; an empty string keeps the
// current working query.
type Reflector interface {
	Reflect(ctx context.Context, query string, chunks []chunk.Chunk, answer string) (judgment.Grounding, string, error)
}
