package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable signals an unreachable vector index.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationFailed signals an LLM completion failure or empty output.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrSearchUnavailable signals a transient web search failure.
	ErrSearchUnavailable = errors.New("web search unavailable")
	// ErrGradingMalformed signals grader output that fails schema validation.
	ErrGradingMalformed = errors.New("grading output malformed")
	// ErrReflectionMalformed signals reflector output that fails schema validation.
	ErrReflectionMalformed = errors.New("reflection output malformed")
	// ErrInvalidMode signals an unknown pipeline mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidRequest signals a request that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidThresholds signals a misconfigured threshold pair.
	ErrInvalidThresholds = errors.New("invalid thresholds")
	// ErrDocumentNotFound signals a missing corpus document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrLLMProviderError signals an LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
)

// ThresholdError wraps ErrInvalidThresholds with the offending values.
type ThresholdError struct {
	Relevant  float64
	Ambiguous float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s: need 0 <= ambiguous (%g) < relevant (%g) <= 1",
		ErrInvalidThresholds.Error(), e.Ambiguous, e.Relevant)
}

func (e *ThresholdError) Unwrap() error { return ErrInvalidThresholds }
