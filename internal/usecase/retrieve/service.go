// Package retrieve turns query text into scored corpus chunks: embed the
// query, then run a KNN lookup against the vector index.
package retrieve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/logger"

	"go.uber.org/zap"
)

// Service implements the Retriever collaborator used by every pipeline.
type Service struct {
	index Index
	embed Embedder
}

// New creates a retrieval service.
func New(index Index, embed Embedder) *Service {
	return &Service{index: index, embed: embed}
}

// Retrieve returns the top-k chunks for a query, ordered by similarity.
// Any failure on the way to the index surfaces as ErrRetrievalUnavailable.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]chunk.Chunk, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w: %w", err, domain.ErrRetrievalUnavailable)
	}

	chunks, err := s.index.SearchKNN(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w: %w", err, domain.ErrRetrievalUnavailable)
	}

	logger.FromContext(ctx).Debug("retrieved chunks",
		zap.Int("requested", k),
		zap.Int("returned", len(chunks)),
	)

	return chunks, nil
}
