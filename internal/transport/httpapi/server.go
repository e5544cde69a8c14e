// Package httpapi exposes the query and corpus endpoints over chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/query"
	healthuc "github.com/kailas-cloud/corag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/corag/internal/usecase/ingest"
	orchestratoruc "github.com/kailas-cloud/corag/internal/usecase/orchestrator"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	queries       *orchestratoruc.Service
	corpus        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	defaultTopK   int
	queryTimeout  time.Duration
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. A zero queryTimeout disables the
// per-request deadline.
func NewServer(
	queries *orchestratoruc.Service,
	corpus *ingestuc.Service,
	health *healthuc.Service,
	defaultTopK int,
	queryTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	s := &Server{
		queries:      queries,
		corpus:       corpus,
		health:       health,
		logger:       logger,
		defaultTopK:  defaultTopK,
		queryTimeout: queryTimeout,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidMode, http.StatusBadRequest, codeInvalidMode),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, codeRetrievalUnavailable),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusBadGateway, codeWebSearchUnavailable),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, codeLLMProviderError),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Routes mounts all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/query", s.Query)
	r.Put("/api/v1/documents/{id}", s.UpsertDocument)
	r.Post("/api/v1/documents", s.CreateDocument)
	r.Get("/api/v1/documents/{id}", s.GetDocument)
	r.Delete("/api/v1/documents/{id}", s.DeleteDocument)
	r.Get("/api/v1/documents/count", s.CountChunks)
	r.Post("/api/v1/admin/reindex", s.Reindex)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Query handles POST /api/v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	mode := query.Mode(req.Mode)
	if req.Mode == "" {
		mode = query.Standard
	}

	q, err := query.NewRequest(req.Query, mode, req.TopK, s.defaultTopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx := r.Context()
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	env, err := s.queries.Handle(ctx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, codeTimeout, "query timed out")
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelopeToDTO(env))
}

// UpsertDocument handles PUT /api/v1/documents/{id}.
func (s *Server) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	s.upsert(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

// CreateDocument handles POST /api/v1/documents. The document id is generated.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	s.upsert(w, r, "", http.StatusCreated)
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	var req upsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	inputs := make([]ingestuc.ChunkInput, len(req.Chunks))
	for i, c := range req.Chunks {
		inputs[i] = ingestuc.ChunkInput{Content: c.Content, Heading: c.Heading}
	}

	docID, count, err := s.corpus.UpsertDocument(r.Context(), id, inputs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if okStatus == http.StatusCreated {
		w.Header().Set("Location", "/api/v1/documents/"+docID)
	}
	writeJSON(w, okStatus, upsertDocumentResponse{DocumentID: docID, Chunks: count})
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, err := s.corpus.GetDocument(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		DocumentID: id,
		Chunks:     chunksToDTO(chunks),
	})
}

// Reindex handles POST /api/v1/admin/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := s.corpus.Reindex(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.corpus.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CountChunks handles GET /api/v1/documents/count.
func (s *Server) CountChunks(w http.ResponseWriter, r *http.Request) {
	n, err := s.corpus.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Chunks: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidMode,
		domain.ErrInvalidRequest,
		domain.ErrDocumentNotFound,
		domain.ErrRetrievalUnavailable,
		domain.ErrSearchUnavailable,
		domain.ErrLLMProviderError,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
