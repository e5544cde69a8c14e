// Package crag implements the corrective RAG controller: grade the retrieved
// context before generation and route to web search when the corpus falls
// short.
package crag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
	"github.com/kailas-cloud/corag/internal/logger"
	"github.com/kailas-cloud/corag/internal/metrics"
)

// Result is the terminal outcome of one corrective run. CRAG does not iterate.
type Result struct {
	Judgment      judgment.Relevance
	Route         judgment.Label
	Context       []chunk.Chunk
	Answer        string
	UsedWebSearch bool
	// Degraded marks a best-effort answer produced after the web search
	// fallback failed on a route that needed it.
	Degraded bool
}

// Service is the corrective RAG controller.
type Service struct {
	retriever  Retriever
	grader     Grader
	web        WebSearcher
	generator  Generator
	thresholds judgment.Thresholds
}

// New creates a corrective controller. Threshold violations are configuration
// errors and fail here, before any external call can be made.
func New(
	retriever Retriever, grader Grader, web WebSearcher, generator Generator,
	thresholds judgment.Thresholds,
) (*Service, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		retriever:  retriever,
		grader:     grader,
		web:        web,
		generator:  generator,
		thresholds: thresholds,
	}, nil
}

// Run executes one corrective pass: retrieve, grade, route, generate.
func (s *Service) Run(ctx context.Context, query string, k int) (Result, error) {
	log := logger.FromContext(ctx)

	retrieved, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: %w", err)
	}

	rel, err := s.grader.Grade(ctx, query, retrieved)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("grade: %w", err)
		}
		// Malformed or failed grading never crashes the pipeline: fall back
		// to ambiguous, favoring augmentation over blind trust.
		log.Warn("grader failed, falling back to ambiguous",
			zap.Error(err),
			zap.Int("retrieved", len(retrieved)),
		)
		rel = judgment.AmbiguousFallback(s.thresholds)
	}

	metrics.RelevanceLabelTotal.WithLabelValues(string(rel.Label())).Inc()
	log.Info("relevance graded",
		zap.Float64("score", rel.Score()),
		zap.String("label", string(rel.Label())),
		zap.Bool("fallback", rel.IsFallback()),
	)

	res := Result{Judgment: rel, Route: rel.Label()}

	switch rel.Label() {
	case judgment.Relevant:
		res.Context = retrieved

	case judgment.Ambiguous:
		webChunks, werr := s.web.Search(ctx, query)
		if werr != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("web search: %w", werr)
			}
			log.Warn("web search unavailable on ambiguous route, answering from corpus only", zap.Error(werr))
			res.Context = retrieved
			res.Degraded = true
			break
		}
		// Retrieved chunks first, web results appended: the order carries
		// citation provenance.
		combined := make([]chunk.Chunk, 0, len(retrieved)+len(webChunks))
		combined = append(combined, retrieved...)
		combined = append(combined, webChunks...)
		res.Context = combined
		res.UsedWebSearch = true

	case judgment.Irrelevant:
		webChunks, werr := s.web.Search(ctx, query)
		if werr != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("web search: %w", werr)
			}
			log.Warn("web search unavailable on irrelevant route, answering without context", zap.Error(werr))
			res.Context = nil
			res.Degraded = true
			break
		}
		// Retrieved chunks are discarded entirely on this route.
		res.Context = webChunks
		res.UsedWebSearch = true
	}

	answer, err := s.generator.Generate(ctx, query, res.Context)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	res.Answer = answer

	return res, nil
}
