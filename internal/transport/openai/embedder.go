package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/metrics"
)

// Embedder vectorizes text through the provider's embeddings endpoint.
type Embedder struct {
	client *Client
}

// NewEmbedder creates an embedder sharing the given client.
func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed returns the embedding vector for a text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.client.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.client.dimensions > 0 {
		req.Dimensions = e.client.dimensions
	}

	start := time.Now()
	resp, err := e.client.api.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("embed", "error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues("embed", "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues("embed", "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues("embed").Observe(duration.Seconds())

	return resp.Data[0].Embedding, nil
}
