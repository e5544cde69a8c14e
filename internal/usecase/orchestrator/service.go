// Package orchestrator dispatches query requests to the pipelines selected
// by mode and assembles the response envelope. Pure dispatch, no routing or
// refinement logic of its own.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/query"
	"github.com/kailas-cloud/corag/internal/metrics"
	"github.com/kailas-cloud/corag/internal/usecase/crag"
	"github.com/kailas-cloud/corag/internal/usecase/reflective"
)

// StandardResult is the outcome of the plain retrieve-and-generate pipeline.
type StandardResult struct {
	Context []chunk.Chunk
	Answer  string
}

// Envelope is the per-mode response. Only the slots the mode produces are
// populated; judgment scores and routing decisions travel with the results
// so callers can audit why an answer was produced.
type Envelope struct {
	Query      string
	Mode       query.Mode
	TopK       int
	Standard   *StandardResult
	Corrective *crag.Result
	Reflective *reflective.Result
	Elapsed    time.Duration
}

// Service dispatches validated requests to the pipelines.
type Service struct {
	retriever  Retriever
	generator  Generator
	corrective CorrectiveRunner
	reflective ReflectiveRunner
}

// New creates an orchestrator.
func New(retriever Retriever, generator Generator, corrective CorrectiveRunner, reflector ReflectiveRunner) *Service {
	return &Service{
		retriever:  retriever,
		generator:  generator,
		corrective: corrective,
		reflective: reflector,
	}
}

// Handle runs the request through the pipelines its mode selects.
func (s *Service) Handle(ctx context.Context, req query.Request) (Envelope, error) {
	start := time.Now()

	env := Envelope{Query: req.Text(), Mode: req.Mode(), TopK: req.TopK()}

	var err error
	switch req.Mode() {
	case query.Standard:
		env.Standard, err = s.runStandard(ctx, req.Text(), req.TopK())

	case query.CRAG:
		var res crag.Result
		res, err = s.corrective.Run(ctx, req.Text(), req.TopK())
		if err == nil {
			env.Corrective = &res
		}

	case query.SelfReflective:
		var res reflective.Result
		res, err = s.reflective.Run(ctx, req.Text(), req.TopK())
		if err == nil {
			env.Reflective = &res
		}

	case query.Both:
		err = s.runBoth(ctx, req, &env)

	case query.Compare:
		err = s.runCompare(ctx, req, &env)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues(string(req.Mode()), status).Inc()

	if err != nil {
		return Envelope{}, err
	}

	env.Elapsed = time.Since(start)
	return env, nil
}

func (s *Service) runStandard(ctx context.Context, text string, k int) (*StandardResult, error) {
	chunks, err := s.retriever.Retrieve(ctx, text, k)
	if err != nil {
		return nil, err
	}
	answer, err := s.generator.Generate(ctx, text, chunks)
	if err != nil {
		return nil, err
	}
	return &StandardResult{Context: chunks, Answer: answer}, nil
}

// runBoth executes CRAG once and hands its routed context to the reflective
// loop's first iteration. CRAG routing is a one-time context-selection step:
// it is not reapplied on refinement iterations.
func (s *Service) runBoth(ctx context.Context, req query.Request, env *Envelope) error {
	cres, err := s.corrective.Run(ctx, req.Text(), req.TopK())
	if err != nil {
		return err
	}
	env.Corrective = &cres

	rres, err := s.reflective.RunSeeded(ctx, req.Text(), req.TopK(), cres.Context)
	if err != nil {
		return err
	}
	env.Reflective = &rres
	return nil
}

// runCompare runs the standard, corrective, and reflective pipelines
// concurrently on the same query with no cross-influence, joining the
// results only at the end.
func (s *Service) runCompare(ctx context.Context, req query.Request, env *Envelope) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := s.runStandard(gctx, req.Text(), req.TopK())
		if err != nil {
			return err
		}
		env.Standard = res
		return nil
	})

	g.Go(func() error {
		res, err := s.corrective.Run(gctx, req.Text(), req.TopK())
		if err != nil {
			return err
		}
		env.Corrective = &res
		return nil
	})

	g.Go(func() error {
		res, err := s.reflective.Run(gctx, req.Text(), req.TopK())
		if err != nil {
			return err
		}
		env.Reflective = &res
		return nil
	})

	return g.Wait()
}
