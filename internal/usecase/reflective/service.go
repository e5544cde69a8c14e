// Package reflective implements the self-reflective RAG controller: generate,
// audit grounding, and retry with a refined query under a hard iteration cap.
package reflective

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
	"github.com/kailas-cloud/corag/internal/logger"
	"github.com/kailas-cloud/corag/internal/metrics"
)

// Attempt is one immutable iteration record: the working query, the context
// it retrieved, the answer generated from it, and the grounding judgment.
type Attempt struct {
	Iteration int
	Query     string
	Context   []chunk.Chunk
	Answer    string
	Judgment  judgment.Grounding
}

// Result is the outcome of a reflective run: the full append-only attempt
// sequence plus the index of the best-scoring attempt.
type Result struct {
	Attempts  []Attempt
	BestIndex int
	// Degraded marks a run cut short by a collaborator failure after at
	// least one attempt was recorded; the best-so-far answer still stands.
	Degraded bool
}

// Best returns the selected attempt: the one with the maximum reflection
// score, earliest iteration on ties.
func (r Result) Best() Attempt {
	return r.Attempts[r.BestIndex]
}

// Config holds the loop bounds.
type Config struct {
	// MaxIterations caps refinement retries. 0 means a single attempt with
	// no refinement. The cap is enforced regardless of reflector behavior.
	MaxIterations int
	// GroundingThreshold terminates the loop once a reflection score
	// reaches it.
	GroundingThreshold float64
}

// Service is the self-reflective controller.
type Service struct {
	retriever Retriever
	generator Generator
	reflector Reflector
	cfg       Config
}

// New creates a reflective controller. Bound violations are configuration
// errors and fail here, before any external call can be made.
func New(retriever Retriever, generator Generator, reflector Reflector, cfg Config) (*Service, error) {
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("max iterations must be >= 0, got %d: %w", cfg.MaxIterations, domain.ErrInvalidRequest)
	}
	if cfg.GroundingThreshold < 0 || cfg.GroundingThreshold > 1 {
		return nil, fmt.Errorf("grounding threshold must be in [0,1], got %g: %w",
			cfg.GroundingThreshold, domain.ErrInvalidRequest)
	}
	return &Service{retriever: retriever, generator: generator, reflector: reflector, cfg: cfg}, nil
}

// Run executes the bounded refinement loop starting from a fresh retrieval.
func (s *Service) Run(ctx context.Context, query string, k int) (Result, error) {
	return s.run(ctx, query, k, nil, false)
}

// RunSeeded executes the loop with a pre-routed context for the first
// iteration (the `both` mode hand-off). Refinement iterations, if any,
// retrieve normally.
func (s *Service) RunSeeded(ctx context.Context, query string, k int, seed []chunk.Chunk) (Result, error) {
	return s.run(ctx, query, k, seed, true)
}

func (s *Service) run(ctx context.Context, query string, k int, seed []chunk.Chunk, seeded bool) (Result, error) {
	log := logger.FromContext(ctx)

	working := query
	var attempts []Attempt
	degraded := false

	for iter := 0; ; iter++ {
		// Cancellation always surfaces, even with recorded attempts: a
		// request-level timeout must abort the run, not degrade it.
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		var ctxChunks []chunk.Chunk
		if iter == 0 && seeded {
			ctxChunks = seed
		} else {
			var err error
			ctxChunks, err = s.retriever.Retrieve(ctx, working, k)
			if err != nil {
				if len(attempts) == 0 || ctx.Err() != nil {
					return Result{}, fmt.Errorf("retrieve: %w", err)
				}
				log.Warn("retrieval failed mid-refinement, keeping best-so-far",
					zap.Int("iteration", iter), zap.Error(err))
				degraded = true
				break
			}
		}

		answer, err := s.generator.Generate(ctx, working, ctxChunks)
		if err != nil {
			if len(attempts) == 0 || ctx.Err() != nil {
				return Result{}, fmt.Errorf("generate: %w", err)
			}
			log.Warn("generation failed mid-refinement, keeping best-so-far",
				zap.Int("iteration", iter), zap.Error(err))
			degraded = true
			break
		}

		grounding, refined, err := s.reflector.Reflect(ctx, working, ctxChunks, answer)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("reflect: %w", err)
			}
			// Malformed or failed reflection is never treated as success:
			// substitute a not-grounded judgment so the loop keeps refining
			// (still bounded by the iteration cap).
			log.Warn("reflector failed, treating answer as not grounded",
				zap.Int("iteration", iter), zap.Error(err))
			grounding = judgment.NotGroundedFallback()
			refined = ""
		}

		if outside := grounding.UncitedContext(chunk.IDSet(ctxChunks)); len(outside) > 0 {
			log.Warn("reflector cited chunks outside the context",
				zap.Int("iteration", iter), zap.Strings("chunk_ids", outside))
		}

		attempts = append(attempts, Attempt{
			Iteration: iter,
			Query:     working,
			Context:   ctxChunks,
			Answer:    answer,
			Judgment:  grounding,
		})

		log.Info("reflection recorded",
			zap.Int("iteration", iter),
			zap.Float64("score", grounding.Score()),
			zap.Bool("grounded", grounding.Grounded()),
		)

		if grounding.Score() >= s.cfg.GroundingThreshold || iter == s.cfg.MaxIterations {
			break
		}

		if refined != "" {
			working = refined
		}
	}

	metrics.ReflectionIterations.Observe(float64(len(attempts) - 1))

	return Result{
		Attempts:  attempts,
		BestIndex: bestAttempt(attempts),
		Degraded:  degraded,
	}, nil
}

// bestAttempt selects the attempt with the maximum reflection score. Strict
// comparison breaks ties toward the earliest iteration.
func bestAttempt(attempts []Attempt) int {
	best := 0
	for i := 1; i < len(attempts); i++ {
		if attempts[i].Judgment.Score() > attempts[best].Judgment.Score() {
			best = i
		}
	}
	return best
}
