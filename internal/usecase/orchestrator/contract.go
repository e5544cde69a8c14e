package orchestrator

import (
	"context"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/usecase/crag"
	"github.com/kailas-cloud/corag/internal/usecase/reflective"
)

// Retriever returns the top-k corpus chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]chunk.Chunk, error)
}

// Generator synthesizes an answer from a query and its context.
type Generator interface {
	Generate(ctx context.Context, query string, chunks []chunk.Chunk) (string, error)
}

// CorrectiveRunner runs the corrective RAG controller.
type CorrectiveRunner interface {
	Run(ctx context.Context, query string, k int) (crag.Result, error)
}

// ReflectiveRunner runs the self-reflective controller, optionally seeded
// with a pre-routed first-iteration context.
type ReflectiveRunner interface {
	Run(ctx context.Context, query string, k int) (reflective.Result, error)
	RunSeeded(ctx context.Context, query string, k int, seed []chunk.Chunk) (reflective.Result, error)
}
