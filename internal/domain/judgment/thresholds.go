// Package judgment defines the structured relevance and grounding judgments
// produced by the grading and reflection collaborators.
package judgment

import "github.com/kailas-cloud/corag/internal/domain"

// Thresholds are the score boundaries used to derive relevance labels.
type Thresholds struct {
	Relevant  float64 // scores at or above are relevant
	Ambiguous float64 // scores at or above (but below Relevant) are ambiguous
}

// DefaultThresholds returns the standard threshold pair.
func DefaultThresholds() Thresholds {
	return Thresholds{Relevant: 0.7, Ambiguous: 0.4}
}

// Validate checks the ordering invariant 0 <= Ambiguous < Relevant <= 1.
// The ambiguous band must be non-empty: a collapsed band would push the
// malformed-grader fallback score onto the relevant side.
func (t Thresholds) Validate() error {
	if t.Ambiguous < 0 || t.Relevant > 1 || t.Ambiguous >= t.Relevant {
		return &domain.ThresholdError{Relevant: t.Relevant, Ambiguous: t.Ambiguous}
	}
	return nil
}
