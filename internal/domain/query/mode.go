// Package query defines the query request value object and pipeline modes.
package query

// Mode selects which controller(s) a query runs through.
type Mode string

// Pipeline mode constants.
const (
	// Standard retrieves and generates with no grading or reflection.
	Standard Mode = "standard"
	// CRAG runs the corrective relevance-routing pipeline alone.
	CRAG Mode = "crag"
	// SelfReflective runs the bounded grounding-refinement loop alone.
	SelfReflective Mode = "self_reflective"
	// Both feeds CRAG's routed context into the reflective loop's first iteration.
	Both Mode = "both"
	// Compare runs standard, crag, and self_reflective independently.
	Compare Mode = "compare"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	switch m {
	case Standard, CRAG, SelfReflective, Both, Compare:
		return true
	default:
		return false
	}
}
