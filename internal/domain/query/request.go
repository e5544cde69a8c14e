package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/corag/internal/domain"
)

// Request is a validated query request. Immutable.
type Request struct {
	text string
	mode Mode
	topK int
}

// NewRequest validates and creates a query request. An empty topK (<= 0)
// falls back to defaultTopK.
func NewRequest(text string, mode Mode, topK, defaultTopK int) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, fmt.Errorf("query must not be empty: %w", domain.ErrInvalidRequest)
	}
	if !mode.IsValid() {
		return Request{}, fmt.Errorf("unknown mode %q: %w", mode, domain.ErrInvalidMode)
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK <= 0 {
		return Request{}, fmt.Errorf("top_k must be positive: %w", domain.ErrInvalidRequest)
	}
	return Request{text: text, mode: mode, topK: topK}, nil
}

// Text returns the query text.
func (r Request) Text() string { return r.text }

// Mode returns the pipeline mode.
func (r Request) Mode() Mode { return r.mode }

// TopK returns the retrieval depth.
func (r Request) TopK() int { return r.topK }
