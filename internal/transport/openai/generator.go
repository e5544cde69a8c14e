package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
)

const generatorSystemPrompt = "You are a helpful assistant that answers questions based on provided context."

// Generator synthesizes answers from a query and its context chunks.
type Generator struct {
	client *Client
}

// NewGenerator creates a generator sharing the given client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate produces an answer for the query from the ordered context.
func (g *Generator) Generate(ctx context.Context, query string, chunks []chunk.Chunk) (string, error) {
	prompt := fmt.Sprintf(`Answer the following query using the provided context.

Query: %s

Context:
%s

Provide a clear, accurate answer based on the context. If the context doesn't fully answer the query, acknowledge what's missing.`,
		query, assembleContext(chunks))

	answer, err := g.client.chat(ctx, "generate", generatorSystemPrompt, prompt, false)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("empty answer: %w", domain.ErrGenerationFailed)
	}
	return answer, nil
}

// assembleContext renders chunks as prompt sections by provenance: corpus
// chunks first under a documents heading, web chunks after under a web
// heading. Order within each section follows the context order, which the
// routing layer relies on for citation provenance.
func assembleContext(chunks []chunk.Chunk) string {
	var corpus, web []chunk.Chunk
	for i := range chunks {
		if chunks[i].Origin() == chunk.Web {
			web = append(web, chunks[i])
		} else {
			corpus = append(corpus, chunks[i])
		}
	}

	if len(corpus) == 0 && len(web) == 0 {
		return "No context is available for this query."
	}

	var b strings.Builder

	if len(corpus) > 0 {
		b.WriteString("=== Retrieved Documents ===\n")
		for i := range corpus {
			fmt.Fprintf(&b, "\nDocument %d [%s]:\n%s\n", i+1, corpus[i].ID(), corpus[i].Content())
		}
	}

	if len(web) > 0 {
		if len(corpus) > 0 {
			b.WriteString("\n=== Additional Web Information ===\n")
		} else {
			b.WriteString("=== Web Search Results ===\n")
		}
		for i := range web {
			heading := web[i].Source().Heading
			if heading == "" {
				heading = "untitled"
			}
			fmt.Fprintf(&b, "\nWeb Source %d [%s] (%s):\n%s\n", i+1, web[i].ID(), heading, web[i].Content())
		}
	}

	return b.String()
}
