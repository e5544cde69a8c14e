package judgment

import (
	"fmt"

	"github.com/kailas-cloud/corag/internal/domain"
)

// Relevance is a relevance judgment over a retrieved context. Immutable.
type Relevance struct {
	score      float64
	confidence float64
	label      Label
	fallback   bool
}

// NewRelevance creates a relevance judgment, deriving the label from the
// score. Scores or confidences outside [0,1] are rejected as malformed.
func NewRelevance(score, confidence float64, t Thresholds) (Relevance, error) {
	if score < 0 || score > 1 {
		return Relevance{}, fmt.Errorf("relevance score %g outside [0,1]: %w", score, domain.ErrGradingMalformed)
	}
	if confidence < 0 || confidence > 1 {
		return Relevance{}, fmt.Errorf("confidence %g outside [0,1]: %w", confidence, domain.ErrGradingMalformed)
	}
	return Relevance{
		score:      score,
		confidence: confidence,
		label:      DeriveLabel(score, t),
	}, nil
}

// AmbiguousFallback returns the conservative judgment substituted when grader
// output is malformed. The score is the midpoint of the ambiguous band so the
// derived label is ambiguous for any valid threshold pair.
func AmbiguousFallback(t Thresholds) Relevance {
	score := t.Ambiguous + (t.Relevant-t.Ambiguous)/2
	return Relevance{
		score:      score,
		confidence: 0.5,
		label:      DeriveLabel(score, t),
		fallback:   true,
	}
}

// Score returns the continuous relevance score in [0,1].
func (r Relevance) Score() float64 { return r.score }

// Confidence returns the grader confidence in [0,1].
func (r Relevance) Confidence() float64 { return r.confidence }

// Label returns the derived relevance label.
func (r Relevance) Label() Label { return r.label }

// IsFallback reports whether the judgment was substituted for malformed
// grader output rather than produced by the grader.
func (r Relevance) IsFallback() bool { return r.fallback }
