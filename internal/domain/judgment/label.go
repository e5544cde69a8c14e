package judgment

// Label is the derived relevance category.
type Label string

// Relevance label constants.
const (
	Relevant   Label = "relevant"
	Ambiguous  Label = "ambiguous"
	Irrelevant Label = "irrelevant"
)

// DeriveLabel maps a relevance score onto a label. The label is always a
// function of the score and thresholds, never set independently.
func DeriveLabel(score float64, t Thresholds) Label {
	switch {
	case score >= t.Relevant:
		return Relevant
	case score >= t.Ambiguous:
		return Ambiguous
	default:
		return Irrelevant
	}
}
