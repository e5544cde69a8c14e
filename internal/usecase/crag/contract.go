package crag

import (
	"context"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
)

// Retriever returns the top-k corpus chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]chunk.Chunk, error)
}

// Grader judges the relevance of retrieved chunks to a query.
type Grader interface {
	Grade(ctx context.Context, query string, chunks []chunk.Chunk) (judgment.Relevance, error)
}

// WebSearcher returns supplementary chunks from an external search.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]chunk.Chunk, error)
}

// Generator synthesizes an answer from a query and its context.
type Generator interface {
	Generate(ctx context.Context, query string, chunks []chunk.Chunk) (string, error)
}
