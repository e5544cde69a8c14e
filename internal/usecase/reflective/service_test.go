package reflective

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
)

// --- Mocks ---

type mockRetriever struct {
	chunks  []chunk.Chunk
	err     error
	calls   int
	queries []string
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, _ int) ([]chunk.Chunk, error) {
	m.calls++
	m.queries = append(m.queries, query)
	return m.chunks, m.err
}

type mockGenerator struct {
	answer string
	err    error
	calls  int
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ []chunk.Chunk) (string, error) {
	m.calls++
	return m.answer, m.err
}

// scriptedReflector replays a fixed sequence of reflections.
type scriptedReflector struct {
	steps []reflection
	calls int
}

type reflection struct {
	score   float64
	refined string
	err     error
}

func (m *scriptedReflector) Reflect(
	_ context.Context, _ string, _ []chunk.Chunk, _ string,
) (judgment.Grounding, string, error) {
	step := m.steps[m.calls]
	m.calls++
	if step.err != nil {
		return judgment.Grounding{}, "", step.err
	}
	g, err := judgment.NewGrounding(step.score >= 0.8, false, step.score, nil)
	if err != nil {
		panic(err)
	}
	return g, step.refined, nil
}

func someChunks() []chunk.Chunk {
	return []chunk.Chunk{
		chunk.New("a", "alpha", chunk.Source{DocumentID: "doc"}, 0.9, chunk.Corpus),
	}
}

func newService(t *testing.T, r Retriever, g Generator, refl Reflector, cfg Config) *Service {
	t.Helper()
	svc, err := New(r, g, refl, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func defaultCfg() Config {
	return Config{MaxIterations: 2, GroundingThreshold: 0.8}
}

// --- Loop behavior ---

func TestRun_TerminatesOnGroundedFirstAttempt(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{{score: 0.9}}}
	svc := newService(t, &mockRetriever{chunks: someChunks()}, &mockGenerator{answer: "a1"}, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Attempts))
	}
	if res.Best().Answer != "a1" {
		t.Errorf("best answer = %q", res.Best().Answer)
	}
	if res.Degraded {
		t.Error("run must not be degraded")
	}
}

func TestRun_IterationCapBoundsAttempts(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{
		{score: 0.2, refined: "q2"},
		{score: 0.3, refined: "q3"},
		{score: 0.4, refined: "q4"},
	}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// max_iterations=2 means at most 1 + 2 attempts.
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	for i, a := range res.Attempts {
		if a.Iteration != i {
			t.Errorf("attempt %d has iteration %d", i, a.Iteration)
		}
	}
}

func TestRun_RefinedQueryDrivesNextRetrieval(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{
		{score: 0.2, refined: "better query"},
		{score: 0.9},
	}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "original", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(retr.queries) != 2 || retr.queries[0] != "original" || retr.queries[1] != "better query" {
		t.Errorf("retrieval queries = %v", retr.queries)
	}
	if res.Attempts[1].Query != "better query" {
		t.Errorf("second attempt query = %q", res.Attempts[1].Query)
	}
}

func TestRun_EmptyRefinementKeepsWorkingQuery(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{
		{score: 0.2, refined: ""},
		{score: 0.9},
	}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl, defaultCfg())

	if _, err := svc.Run(context.Background(), "original", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retr.queries[1] != "original" {
		t.Errorf("second retrieval used %q, want the original query", retr.queries[1])
	}
}

func TestRun_BestSoFarEarliestTieWins(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{
		{score: 0.5, refined: "q2"},
		{score: 0.7, refined: "q3"},
		{score: 0.7},
	}}
	svc := newService(t, &mockRetriever{chunks: someChunks()}, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BestIndex != 1 {
		t.Errorf("best index = %d, want 1 (earliest of the tied 0.7 scores)", res.BestIndex)
	}
}

func TestRun_ZeroIterationsSingleAttempt(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{{score: 0.1, refined: "ignored"}}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl,
		Config{MaxIterations: 0, GroundingThreshold: 0.8})

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(res.Attempts))
	}
	if retr.calls != 1 {
		t.Errorf("retrieval calls = %d, want 1", retr.calls)
	}
}

// --- Fallbacks and failures ---

func TestRun_ReflectorFailureForcesRefinement(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{
		{err: domain.ErrReflectionMalformed},
		{score: 0.9},
	}}
	svc := newService(t, &mockRetriever{chunks: someChunks()}, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("reflector failure must not surface: %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (fallback must not terminate the loop)", len(res.Attempts))
	}
	first := res.Attempts[0].Judgment
	if first.Grounded() || first.Score() != 0 || !first.IsFallback() {
		t.Errorf("first judgment = grounded=%v score=%g fallback=%v, want not-grounded fallback",
			first.Grounded(), first.Score(), first.IsFallback())
	}
	if res.BestIndex != 1 {
		t.Errorf("best index = %d, want 1", res.BestIndex)
	}
}

func TestRun_FirstRetrievalErrorSurfaces(t *testing.T) {
	svc := newService(t, &mockRetriever{err: domain.ErrRetrievalUnavailable},
		&mockGenerator{}, &scriptedReflector{}, defaultCfg())

	if _, err := svc.Run(context.Background(), "q", 5); !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestRun_MidLoopGenerationFailureKeepsBestSoFar(t *testing.T) {
	refl := &scriptedReflector{steps: []reflection{{score: 0.5, refined: "q2"}}}
	gen := &failAfterGenerator{answer: "a1", failFrom: 2}
	svc := newService(t, &mockRetriever{chunks: someChunks()}, gen, refl, defaultCfg())

	res, err := svc.Run(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("mid-loop failure must not surface: %v", err)
	}
	if !res.Degraded {
		t.Error("expected Degraded=true")
	}
	if len(res.Attempts) != 1 || res.Best().Answer != "a1" {
		t.Errorf("best-so-far lost: attempts=%d", len(res.Attempts))
	}
}

func TestRun_CancellationSurfacesDespiteRecordedAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	refl := &cancellingReflector{cancel: cancel}
	svc := newService(t, &mockRetriever{chunks: someChunks()}, &mockGenerator{answer: "a1"}, refl, defaultCfg())

	res, err := svc.Run(ctx, "q", 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got err=%v attempts=%d degraded=%v",
			err, len(res.Attempts), res.Degraded)
	}
}

// cancellingReflector cancels the request context after its first reflection,
// simulating a deadline firing between iterations.
type cancellingReflector struct {
	cancel context.CancelFunc
}

func (m *cancellingReflector) Reflect(
	_ context.Context, _ string, _ []chunk.Chunk, _ string,
) (judgment.Grounding, string, error) {
	m.cancel()
	g, err := judgment.NewGrounding(false, false, 0.2, nil)
	if err != nil {
		panic(err)
	}
	return g, "refined", nil
}

// failAfterGenerator succeeds until call number failFrom.
type failAfterGenerator struct {
	answer   string
	failFrom int
	calls    int
}

func (m *failAfterGenerator) Generate(_ context.Context, _ string, _ []chunk.Chunk) (string, error) {
	m.calls++
	if m.calls >= m.failFrom {
		return "", domain.ErrGenerationFailed
	}
	return m.answer, nil
}

// --- Seeded runs ---

func TestRunSeeded_FirstIterationSkipsRetrieval(t *testing.T) {
	seed := []chunk.Chunk{
		chunk.New("seed:0", "handed off", chunk.Source{}, 0.7, chunk.Corpus),
	}
	refl := &scriptedReflector{steps: []reflection{{score: 0.9}}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.RunSeeded(context.Background(), "q", 5, seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retr.calls != 0 {
		t.Errorf("retrieval calls = %d, want 0 when the seed satisfies iteration 0", retr.calls)
	}
	if ids := chunk.IDs(res.Attempts[0].Context); len(ids) != 1 || ids[0] != "seed:0" {
		t.Errorf("first attempt context = %v, want the seed", ids)
	}
}

func TestRunSeeded_RefinementRetrievesFresh(t *testing.T) {
	seed := []chunk.Chunk{chunk.New("seed:0", "handed off", chunk.Source{}, 0.7, chunk.Corpus)}
	refl := &scriptedReflector{steps: []reflection{
		{score: 0.2, refined: "q2"},
		{score: 0.9},
	}}
	retr := &mockRetriever{chunks: someChunks()}
	svc := newService(t, retr, &mockGenerator{answer: "a"}, refl, defaultCfg())

	res, err := svc.RunSeeded(context.Background(), "q", 5, seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retr.calls != 1 {
		t.Errorf("retrieval calls = %d, want 1 (refinement only)", retr.calls)
	}
	if ids := chunk.IDs(res.Attempts[1].Context); len(ids) != 1 || ids[0] != "a" {
		t.Errorf("second attempt context = %v, want fresh retrieval", ids)
	}
}

func TestNew_RejectsInvalidBounds(t *testing.T) {
	if _, err := New(&mockRetriever{}, &mockGenerator{}, &scriptedReflector{},
		Config{MaxIterations: -1, GroundingThreshold: 0.8}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("negative iterations: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := New(&mockRetriever{}, &mockGenerator{}, &scriptedReflector{},
		Config{MaxIterations: 2, GroundingThreshold: 1.5}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("threshold above 1: expected ErrInvalidRequest, got %v", err)
	}
}
