package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/domain/judgment"
)

const graderSystemPrompt = "You are a relevance evaluator for retrieval-augmented generation. Always respond with valid JSON."

// excerptLen bounds how much of each chunk the grader sees.
const excerptLen = 300

// Grader judges whether retrieved chunks are relevant to a query.
type Grader struct {
	client     *Client
	thresholds judgment.Thresholds
}

// NewGrader creates a relevance grader sharing the given client.
func NewGrader(client *Client, thresholds judgment.Thresholds) *Grader {
	return &Grader{client: client, thresholds: thresholds}
}

// graderOutput mirrors the JSON shape the grader prompt requests.
type graderOutput struct {
	RelevanceScore float64 `json:"relevance_score"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// Grade evaluates the relevance of retrieved chunks to the query. Output
// that cannot be parsed into the expected shape, or whose scores fall
// outside [0,1], fails with domain.ErrGradingMalformed.
func (g *Grader) Grade(ctx context.Context, query string, chunks []chunk.Chunk) (judgment.Relevance, error) {
	prompt := fmt.Sprintf(`Evaluate if the following retrieved documents are relevant to answer the query.

Query: %s

Retrieved Documents:
%s

Provide evaluation as JSON:
{
    "relevance_score": <float 0.0-1.0>,
    "confidence": <float 0.0-1.0>,
    "reasoning": "<brief explanation>"
}

Scoring guide:
- %g-1.0: documents directly answer the query
- %g-%g: partial information, may need web search
- 0.0-%g: documents don't help answer the query`,
		query, excerpts(chunks),
		g.thresholds.Relevant,
		g.thresholds.Ambiguous, g.thresholds.Relevant,
		g.thresholds.Ambiguous)

	raw, err := g.client.chat(ctx, "grade", graderSystemPrompt, prompt, true)
	if err != nil {
		return judgment.Relevance{}, err
	}

	var out graderOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return judgment.Relevance{}, fmt.Errorf("parse grader output: %v: %w", err, domain.ErrGradingMalformed)
	}

	return judgment.NewRelevance(out.RelevanceScore, out.Confidence, g.thresholds)
}

// excerpts renders numbered chunk excerpts for the grading prompt.
func excerpts(chunks []chunk.Chunk) string {
	if len(chunks) == 0 {
		return "(no documents retrieved)"
	}
	var b strings.Builder
	for i := range chunks {
		content := chunks[i].Content()
		if len(content) > excerptLen {
			content = content[:excerptLen]
		}
		fmt.Fprintf(&b, "Chunk %d: %s\n\n", i+1, content)
	}
	return strings.TrimRight(b.String(), "\n")
}
