// Package ingest loads pre-chunked documents into the corpus: embed each
// chunk and store it with its provenance metadata.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/logger"
)

// ChunkInput is one chunk of a document to ingest.
type ChunkInput struct {
	Content string
	Heading string
}

// Service handles corpus document lifecycle.
type Service struct {
	repo  Repository
	embed Embedder
}

// New creates an ingestion service.
func New(repo Repository, embed Embedder) *Service {
	return &Service{repo: repo, embed: embed}
}

// UpsertDocument replaces a document's chunks with the given ones. An empty
// documentID gets a generated one. Returns the document id and the number of
// chunks stored.
func (s *Service) UpsertDocument(ctx context.Context, documentID string, inputs []ChunkInput) (string, int, error) {
	if len(inputs) == 0 {
		return "", 0, fmt.Errorf("document must have at least one chunk: %w", domain.ErrInvalidRequest)
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.Content) == "" {
			return "", 0, fmt.Errorf("chunk %d has empty content: %w", i, domain.ErrInvalidRequest)
		}
	}

	if documentID == "" {
		documentID = uuid.NewString()
	}

	// Replace semantics: stale chunks from a previous revision must not
	// survive a shrinking re-ingest.
	if _, err := s.repo.DeleteDocument(ctx, documentID); err != nil {
		return "", 0, fmt.Errorf("clear previous chunks: %w", err)
	}

	for i, in := range inputs {
		vec, err := s.embed.Embed(ctx, in.Content)
		if err != nil {
			return "", 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}

		id := fmt.Sprintf("%s:%d", documentID, i)
		c := chunk.New(id, in.Content, chunk.Source{
			DocumentID: documentID,
			Position:   i,
			Heading:    in.Heading,
		}, 0, chunk.Corpus)

		if err := s.repo.Upsert(ctx, &c, vec); err != nil {
			return "", 0, fmt.Errorf("store chunk %d: %w", i, err)
		}
	}

	logger.FromContext(ctx).Info("document ingested",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(inputs)),
	)

	return documentID, len(inputs), nil
}

// GetDocument returns a document's chunks in position order. Returns
// domain.ErrDocumentNotFound if nothing is stored under the id.
func (s *Service) GetDocument(ctx context.Context, documentID string) ([]chunk.Chunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id is required: %w", domain.ErrInvalidRequest)
	}
	chunks, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return chunks, nil
}

// DeleteDocument removes all chunks of a document. Returns
// domain.ErrDocumentNotFound if nothing was stored under the id.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document id is required: %w", domain.ErrInvalidRequest)
	}
	removed, err := s.repo.DeleteDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if removed == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Count returns the total number of chunks in the corpus.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Reindex rebuilds the vector index over the stored corpus. Useful after
// dimension or HNSW parameter changes.
func (s *Service) Reindex(ctx context.Context) error {
	if err := s.repo.Reindex(ctx); err != nil {
		return fmt.Errorf("reindex corpus: %w", err)
	}
	logger.FromContext(ctx).Info("corpus index rebuilt")
	return nil
}
