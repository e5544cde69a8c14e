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

const reflectorSystemPrompt = "You are a grounding auditor for retrieval-augmented generation. " +
	"You verify that answers are supported by their context. Always respond with valid JSON."

// Reflector judges whether a generated answer is grounded in its context and
// proposes a refined query when it is not.
type Reflector struct {
	client *Client
}

// NewReflector creates a grounding reflector sharing the given client.
func NewReflector(client *Client) *Reflector {
	return &Reflector{client: client}
}

// reflectorOutput mirrors the JSON shape the reflection prompt requests.
type reflectorOutput struct {
	AnswerGrounded        bool     `json:"answer_grounded"`
	HallucinationDetected bool     `json:"hallucination_detected"`
	ReflectionScore       float64  `json:"reflection_score"`
	CitedChunkIDs         []string `json:"cited_chunk_ids"`
	RefinedQuery          string   `json:"refined_query"`
}

// Reflect evaluates how well the answer is grounded in the context and
// returns the judgment plus a refined query suggestion. Output that cannot
// be parsed, or whose score falls outside [0,1], fails with
// domain.ErrReflectionMalformed.
func (r *Reflector) Reflect(
	ctx context.Context, query string, chunks []chunk.Chunk, answer string,
) (judgment.Grounding, string, error) {
	prompt := fmt.Sprintf(`Evaluate whether the following answer is grounded in the provided context.

Query: %s

Context chunks:
%s

Answer:
%s

Provide evaluation as JSON:
{
    "answer_grounded": <bool: every claim is supported by the context>,
    "hallucination_detected": <bool: the answer asserts facts absent from the context>,
    "reflection_score": <float 0.0-1.0: overall grounding quality>,
    "cited_chunk_ids": [<ids of context chunks that support the answer>],
    "refined_query": "<a reworded query that would retrieve better context, or the original query if retrieval was adequate>"
}`,
		query, citedExcerpts(chunks), answer)

	raw, err := r.client.chat(ctx, "reflect", reflectorSystemPrompt, prompt, true)
	if err != nil {
		return judgment.Grounding{}, "", err
	}

	var out reflectorOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return judgment.Grounding{}, "", fmt.Errorf("parse reflector output: %v: %w", err, domain.ErrReflectionMalformed)
	}

	g, err := judgment.NewGrounding(out.AnswerGrounded, out.HallucinationDetected, out.ReflectionScore, out.CitedChunkIDs)
	if err != nil {
		return judgment.Grounding{}, "", err
	}
	return g, strings.TrimSpace(out.RefinedQuery), nil
}

// citedExcerpts renders chunks with their ids so the reflector can cite them.
func citedExcerpts(chunks []chunk.Chunk) string {
	if len(chunks) == 0 {
		return "(no context)"
	}
	var b strings.Builder
	for i := range chunks {
		content := chunks[i].Content()
		if len(content) > excerptLen {
			content = content[:excerptLen]
		}
		fmt.Fprintf(&b, "[%s] %s\n\n", chunks[i].ID(), content)
	}
	return strings.TrimRight(b.String(), "\n")
}
