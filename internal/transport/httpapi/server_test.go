package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
	craguc "github.com/kailas-cloud/corag/internal/usecase/crag"
	healthuc "github.com/kailas-cloud/corag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/corag/internal/usecase/ingest"
	orchestratoruc "github.com/kailas-cloud/corag/internal/usecase/orchestrator"
	reflectiveuc "github.com/kailas-cloud/corag/internal/usecase/reflective"
)

// --- Pipeline mocks ---

type mockRetriever struct {
	chunks []chunk.Chunk
	err    error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, _ int) ([]chunk.Chunk, error) {
	return m.chunks, m.err
}

type mockGenerator struct {
	answer string
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ []chunk.Chunk) (string, error) {
	return m.answer, m.err
}

type mockCorrective struct {
	result craguc.Result
	err    error
}

func (m *mockCorrective) Run(_ context.Context, _ string, _ int) (craguc.Result, error) {
	return m.result, m.err
}

type mockReflective struct {
	result reflectiveuc.Result
	err    error
}

func (m *mockReflective) Run(_ context.Context, _ string, _ int) (reflectiveuc.Result, error) {
	return m.result, m.err
}

func (m *mockReflective) RunSeeded(_ context.Context, _ string, _ int, _ []chunk.Chunk) (reflectiveuc.Result, error) {
	return m.result, m.err
}

// --- Corpus mocks ---

type mockRepo struct {
	stored     []chunk.Chunk
	deletedN   int
	deleteErr  error
	countN     int
	reindexed  int
	reindexErr error
}

func (m *mockRepo) Upsert(_ context.Context, _ *chunk.Chunk, _ []float32) error { return nil }

func (m *mockRepo) GetDocument(_ context.Context, _ string) ([]chunk.Chunk, error) {
	return m.stored, nil
}

func (m *mockRepo) DeleteDocument(_ context.Context, _ string) (int, error) {
	return m.deletedN, m.deleteErr
}

func (m *mockRepo) Count(_ context.Context) (int, error) { return m.countN, nil }

func (m *mockRepo) Reindex(_ context.Context) error {
	m.reindexed++
	return m.reindexErr
}

type mockEmbedder struct{}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1}, nil
}

// --- Health mocks ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type fixture struct {
	retriever  *mockRetriever
	generator  *mockGenerator
	corrective *mockCorrective
	reflective *mockReflective
	repo       *mockRepo
	pinger     *mockPinger
	router     chi.Router
}

func newFixture() *fixture {
	f := &fixture{
		retriever: &mockRetriever{
			chunks: []chunk.Chunk{
				chunk.New("doc-1:0", "alpha", chunk.Source{DocumentID: "doc-1", Heading: "H"}, 0.9, chunk.Corpus),
			},
		},
		generator:  &mockGenerator{answer: "an answer"},
		corrective: &mockCorrective{},
		reflective: &mockReflective{},
		repo:       &mockRepo{deletedN: 1, countN: 2},
		pinger:     &mockPinger{},
	}

	queries := orchestratoruc.New(f.retriever, f.generator, f.corrective, f.reflective)
	corpus := ingestuc.New(f.repo, &mockEmbedder{})
	health := healthuc.New(f.pinger, nil)

	srv := NewServer(queries, corpus, health, 5, time.Minute, zap.NewNop())
	f.router = chi.NewRouter()
	srv.Routes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
	return v
}

// --- Query endpoint ---

func TestQuery_StandardMode(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "what is raft?", "mode": "standard"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeJSON[queryResponse](t, rr)
	if resp.Mode != "standard" || resp.Query != "what is raft?" || resp.TopK != 5 {
		t.Errorf("envelope echo: %+v", resp)
	}
	if resp.Standard == nil || resp.Standard.Answer != "an answer" {
		t.Fatalf("standard result: %+v", resp.Standard)
	}
	if len(resp.Standard.Context) != 1 || resp.Standard.Context[0].ID != "doc-1:0" {
		t.Errorf("context: %+v", resp.Standard.Context)
	}
	if resp.Corrective != nil || resp.Reflective != nil {
		t.Error("standard mode must not populate other slots")
	}
}

func TestQuery_DefaultsToStandardMode(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[queryResponse](t, rr)
	if resp.Mode != "standard" {
		t.Errorf("mode = %q, want standard", resp.Mode)
	}
}

func TestQuery_CRAGModeCarriesJudgment(t *testing.T) {
	f := newFixture()
	rel := judgment.AmbiguousFallback(judgment.DefaultThresholds())
	f.corrective.result = craguc.Result{
		Judgment:      rel,
		Route:         rel.Label(),
		Answer:        "routed answer",
		UsedWebSearch: true,
		Context: []chunk.Chunk{
			chunk.New("web:1", "web text", chunk.Source{DocumentID: "https://x"}, 0.3, chunk.Web),
		},
	}

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q", "mode": "crag"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[queryResponse](t, rr)
	if resp.Corrective == nil {
		t.Fatal("corrective slot missing")
	}
	if resp.Corrective.Route != "ambiguous" || !resp.Corrective.UsedWebSearch {
		t.Errorf("corrective = %+v", resp.Corrective)
	}
	if !resp.Corrective.Judgment.Fallback {
		t.Error("fallback flag must be carried to the response")
	}
	if resp.Corrective.Context[0].Origin != "web" {
		t.Errorf("origin = %q", resp.Corrective.Context[0].Origin)
	}
}

func TestQuery_ReflectiveModeCarriesAttempts(t *testing.T) {
	f := newFixture()
	g1 := judgment.NotGroundedFallback()
	g2, err := judgment.NewGrounding(true, false, 0.9, []string{"doc-1:0"})
	if err != nil {
		t.Fatalf("NewGrounding: %v", err)
	}
	f.reflective.result = reflectiveuc.Result{
		Attempts: []reflectiveuc.Attempt{
			{Iteration: 0, Query: "q", Answer: "first", Judgment: g1},
			{Iteration: 1, Query: "refined q", Answer: "second", Judgment: g2},
		},
		BestIndex: 1,
	}

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q", "mode": "self_reflective"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[queryResponse](t, rr)
	if resp.Reflective == nil {
		t.Fatal("reflective slot missing")
	}
	if resp.Reflective.Iterations != 2 || resp.Reflective.BestIndex != 1 {
		t.Errorf("reflective = %+v", resp.Reflective)
	}
	if resp.Reflective.Answer != "second" {
		t.Errorf("answer = %q, want the best attempt's", resp.Reflective.Answer)
	}
	if !resp.Reflective.Attempts[0].Judgment.Fallback {
		t.Error("first attempt fallback flag lost")
	}
	if got := resp.Reflective.Attempts[1].Judgment.CitedChunkIDs; len(got) != 1 || got[0] != "doc-1:0" {
		t.Errorf("cited ids = %v", got)
	}
}

func TestQuery_InvalidMode_400(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q", "mode": "turbo"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeInvalidMode {
		t.Errorf("code = %q, want %q", resp.Code, codeInvalidMode)
	}
}

func TestQuery_EmptyQuery_400(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestQuery_MalformedBody_400(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/query", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeBadRequest {
		t.Errorf("code = %q, want %q", resp.Code, codeBadRequest)
	}
}

func TestQuery_RetrievalDown_503(t *testing.T) {
	f := newFixture()
	f.retriever.err = domain.ErrRetrievalUnavailable

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeRetrievalUnavailable {
		t.Errorf("code = %q", resp.Code)
	}
}

// blockingRetriever holds until the request deadline fires, then reports the
// context error the way the real retrieval service wraps it.
type blockingRetriever struct{}

func (blockingRetriever) Retrieve(ctx context.Context, _ string, _ int) ([]chunk.Chunk, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("search index: %w: %w", ctx.Err(), domain.ErrRetrievalUnavailable)
}

func TestQuery_Timeout_504(t *testing.T) {
	queries := orchestratoruc.New(blockingRetriever{}, &mockGenerator{answer: "a"}, &mockCorrective{}, &mockReflective{})
	corpus := ingestuc.New(&mockRepo{}, &mockEmbedder{})
	health := healthuc.New(&mockPinger{}, nil)

	srv := NewServer(queries, corpus, health, 5, 10*time.Millisecond, zap.NewNop())
	router := chi.NewRouter()
	srv.Routes(router)

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(`{"query": "q"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeTimeout {
		t.Errorf("code = %q, want %q", resp.Code, codeTimeout)
	}
}

func TestQuery_GenerationFailure_502(t *testing.T) {
	f := newFixture()
	f.generator.err = domain.ErrGenerationFailed

	rr := f.do(t, "POST", "/api/v1/query", `{"query": "q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
}

// --- Document endpoints ---

func TestUpsertDocument_PUT(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "PUT", "/api/v1/documents/doc-1",
		`{"chunks": [{"content": "first", "heading": "Intro"}, {"content": "second"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[upsertDocumentResponse](t, rr)
	if resp.DocumentID != "doc-1" || resp.Chunks != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateDocument_POSTGeneratesID(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/documents", `{"chunks": [{"content": "x"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[upsertDocumentResponse](t, rr)
	if resp.DocumentID == "" {
		t.Error("expected a generated document id")
	}
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/api/v1/documents/") {
		t.Errorf("Location = %q", loc)
	}
}

func TestUpsertDocument_EmptyChunks_400(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "PUT", "/api/v1/documents/doc-1", `{"chunks": []}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGetDocument_ReturnsChunks(t *testing.T) {
	f := newFixture()
	f.repo.stored = []chunk.Chunk{
		chunk.New("doc-1:0", "alpha", chunk.Source{DocumentID: "doc-1", Heading: "H"}, 0, chunk.Corpus),
	}

	rr := f.do(t, "GET", "/api/v1/documents/doc-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[documentResponse](t, rr)
	if resp.DocumentID != "doc-1" || len(resp.Chunks) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Chunks[0].ID != "doc-1:0" || resp.Chunks[0].Source.Heading != "H" {
		t.Errorf("chunk = %+v", resp.Chunks[0])
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/v1/documents/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeDocumentNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestReindex_NoContent(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/v1/admin/reindex", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if f.repo.reindexed != 1 {
		t.Errorf("reindex calls = %d, want 1", f.repo.reindexed)
	}
}

func TestDeleteDocument_NoContent(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "DELETE", "/api/v1/documents/doc-1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	f := newFixture()
	f.repo.deletedN = 0

	rr := f.do(t, "DELETE", "/api/v1/documents/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[errorResponse](t, rr)
	if resp.Code != codeDocumentNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCountChunks(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/v1/documents/count", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[countResponse](t, rr)
	if resp.Chunks != 2 {
		t.Errorf("chunks = %d, want 2", resp.Chunks)
	}
}

// --- Health endpoint ---

func TestHealth_OK(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[healthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_Degraded_503(t *testing.T) {
	f := newFixture()
	f.pinger.err = errors.New("connection refused")

	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[healthResponse](t, rr)
	if resp.Status != "degraded" {
		t.Errorf("status = %q", resp.Status)
	}
}
