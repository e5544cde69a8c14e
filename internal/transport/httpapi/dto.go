package httpapi

import (
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
	"github.com/kailas-cloud/corag/internal/usecase/crag"
	"github.com/kailas-cloud/corag/internal/usecase/orchestrator"
	"github.com/kailas-cloud/corag/internal/usecase/reflective"
)

type errorCode string

const (
	codeBadRequest           errorCode = "bad_request"
	codeValidationFailed     errorCode = "validation_failed"
	codeInvalidMode          errorCode = "invalid_mode"
	codeDocumentNotFound     errorCode = "document_not_found"
	codeRetrievalUnavailable errorCode = "retrieval_unavailable"
	codeWebSearchUnavailable errorCode = "web_search_unavailable"
	codeLLMProviderError     errorCode = "llm_provider_error"
	codeGenerationFailed     errorCode = "generation_failed"
	codeTimeout              errorCode = "timeout"
	codeInternalError        errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

type chunkSourceDTO struct {
	DocumentID string `json:"document_id,omitempty"`
	Position   int    `json:"position"`
	Heading    string `json:"heading,omitempty"`
}

type chunkDTO struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Score   float64        `json:"score"`
	Origin  string         `json:"origin"`
	Source  chunkSourceDTO `json:"source"`
}

type relevanceDTO struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Fallback   bool    `json:"fallback,omitempty"`
}

type groundingDTO struct {
	Grounded              bool     `json:"grounded"`
	HallucinationDetected bool     `json:"hallucination_detected"`
	Score                 float64  `json:"score"`
	CitedChunkIDs         []string `json:"cited_chunk_ids,omitempty"`
	Fallback              bool     `json:"fallback,omitempty"`
}

type standardResultDTO struct {
	Answer  string     `json:"answer"`
	Context []chunkDTO `json:"context"`
}

type correctiveResultDTO struct {
	Answer        string       `json:"answer"`
	Route         string       `json:"route"`
	Judgment      relevanceDTO `json:"judgment"`
	Context       []chunkDTO   `json:"context"`
	UsedWebSearch bool         `json:"used_web_search"`
	Degraded      bool         `json:"degraded,omitempty"`
}

type attemptDTO struct {
	Iteration int          `json:"iteration"`
	Query     string       `json:"query"`
	Answer    string       `json:"answer"`
	Context   []chunkDTO   `json:"context"`
	Judgment  groundingDTO `json:"judgment"`
}

type reflectiveResultDTO struct {
	Answer     string       `json:"answer"`
	Iterations int          `json:"iterations"`
	BestIndex  int          `json:"best_index"`
	Attempts   []attemptDTO `json:"attempts"`
	Degraded   bool         `json:"degraded,omitempty"`
}

type queryResponse struct {
	Query      string               `json:"query"`
	Mode       string               `json:"mode"`
	TopK       int                  `json:"top_k"`
	ElapsedMs  int64                `json:"elapsed_ms"`
	Standard   *standardResultDTO   `json:"standard,omitempty"`
	Corrective *correctiveResultDTO `json:"corrective,omitempty"`
	Reflective *reflectiveResultDTO `json:"reflective,omitempty"`
}

type chunkInputDTO struct {
	Content string `json:"content"`
	Heading string `json:"heading,omitempty"`
}

type upsertDocumentRequest struct {
	Chunks []chunkInputDTO `json:"chunks"`
}

type upsertDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

type documentResponse struct {
	DocumentID string     `json:"document_id"`
	Chunks     []chunkDTO `json:"chunks"`
}

type countResponse struct {
	Chunks int `json:"chunks"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func envelopeToDTO(env orchestrator.Envelope) queryResponse {
	resp := queryResponse{
		Query:     env.Query,
		Mode:      string(env.Mode),
		TopK:      env.TopK,
		ElapsedMs: env.Elapsed.Milliseconds(),
	}
	if env.Standard != nil {
		resp.Standard = &standardResultDTO{
			Answer:  env.Standard.Answer,
			Context: chunksToDTO(env.Standard.Context),
		}
	}
	if env.Corrective != nil {
		resp.Corrective = correctiveToDTO(env.Corrective)
	}
	if env.Reflective != nil {
		resp.Reflective = reflectiveToDTO(env.Reflective)
	}
	return resp
}

func correctiveToDTO(res *crag.Result) *correctiveResultDTO {
	return &correctiveResultDTO{
		Answer:        res.Answer,
		Route:         string(res.Route),
		Judgment:      relevanceToDTO(res.Judgment),
		Context:       chunksToDTO(res.Context),
		UsedWebSearch: res.UsedWebSearch,
		Degraded:      res.Degraded,
	}
}

func reflectiveToDTO(res *reflective.Result) *reflectiveResultDTO {
	attempts := make([]attemptDTO, len(res.Attempts))
	for i, a := range res.Attempts {
		attempts[i] = attemptDTO{
			Iteration: a.Iteration,
			Query:     a.Query,
			Answer:    a.Answer,
			Context:   chunksToDTO(a.Context),
			Judgment:  groundingToDTO(a.Judgment),
		}
	}
	return &reflectiveResultDTO{
		Answer:     res.Best().Answer,
		Iterations: len(res.Attempts),
		BestIndex:  res.BestIndex,
		Attempts:   attempts,
		Degraded:   res.Degraded,
	}
}

func relevanceToDTO(r judgment.Relevance) relevanceDTO {
	return relevanceDTO{
		Score:      r.Score(),
		Confidence: r.Confidence(),
		Label:      string(r.Label()),
		Fallback:   r.IsFallback(),
	}
}

func groundingToDTO(g judgment.Grounding) groundingDTO {
	return groundingDTO{
		Grounded:              g.Grounded(),
		HallucinationDetected: g.HallucinationDetected(),
		Score:                 g.Score(),
		CitedChunkIDs:         g.CitedIDs(),
		Fallback:              g.IsFallback(),
	}
}

func chunksToDTO(chunks []chunk.Chunk) []chunkDTO {
	out := make([]chunkDTO, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		src := c.Source()
		out[i] = chunkDTO{
			ID:      c.ID(),
			Content: c.Content(),
			Score:   c.Score(),
			Origin:  string(c.Origin()),
			Source: chunkSourceDTO{
				DocumentID: src.DocumentID,
				Position:   src.Position,
				Heading:    src.Heading,
			},
		}
	}
	return out
}
