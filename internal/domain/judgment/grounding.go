package judgment

import (
	"fmt"

	"github.com/kailas-cloud/corag/internal/domain"
)

// Grounding is a grounding judgment over a generated answer. Immutable.
type Grounding struct {
	grounded      bool
	hallucination bool
	score         float64
	citedIDs      []string
	fallback      bool
}

// NewGrounding creates a grounding judgment. Scores outside [0,1] are
// rejected as malformed.
func NewGrounding(grounded, hallucination bool, score float64, citedIDs []string) (Grounding, error) {
	if score < 0 || score > 1 {
		return Grounding{}, fmt.Errorf("reflection score %g outside [0,1]: %w", score, domain.ErrReflectionMalformed)
	}
	cited := make([]string, len(citedIDs))
	copy(cited, citedIDs)
	return Grounding{
		grounded:      grounded,
		hallucination: hallucination,
		score:         score,
		citedIDs:      cited,
	}, nil
}

// NotGroundedFallback returns the conservative judgment substituted when
// reflector output is malformed: never treated as success, so the loop is
// forced to refine.
func NotGroundedFallback() Grounding {
	return Grounding{grounded: false, hallucination: false, score: 0, fallback: true}
}

// Grounded reports whether the answer is supported by its context.
func (g Grounding) Grounded() bool { return g.grounded }

// HallucinationDetected reports whether the reflector flagged unsupported claims.
func (g Grounding) HallucinationDetected() bool { return g.hallucination }

// Score returns the continuous reflection score in [0,1].
func (g Grounding) Score() float64 { return g.score }

// CitedIDs returns the chunk identifiers the answer cites.
func (g Grounding) CitedIDs() []string {
	ids := make([]string, len(g.citedIDs))
	copy(ids, g.citedIDs)
	return ids
}

// IsFallback reports whether the judgment was substituted for malformed
// reflector output.
func (g Grounding) IsFallback() bool { return g.fallback }

// UncitedContext returns cited ids that are not in the given context id set.
// A non-empty result is an invariant violation the caller tolerates but logs.
func (g Grounding) UncitedContext(contextIDs map[string]struct{}) []string {
	var outside []string
	for _, id := range g.citedIDs {
		if _, ok := contextIDs[id]; !ok {
			outside = append(outside, id)
		}
	}
	return outside
}
