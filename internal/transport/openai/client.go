// Package openai implements the LLM collaborators (embedder, generator,
// relevance grader, grounding reflector) against an OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/metrics"
)

// Config holds the LLM provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	EmbeddingModel  string
	Dimensions      int
	MaxAnswerTokens int
	Logger          *zap.Logger
}

// Client wraps the OpenAI-compatible API for chat completions and embeddings.
type Client struct {
	api             *openai.Client
	chatModel       string
	embeddingModel  openai.EmbeddingModel
	dimensions      int
	maxAnswerTokens int
	logger          *zap.Logger
}

// NewClient creates an OpenAI-compatible LLM client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:             openai.NewClientWithConfig(clientCfg),
		chatModel:       cfg.ChatModel,
		embeddingModel:  openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions:      cfg.Dimensions,
		maxAnswerTokens: cfg.MaxAnswerTokens,
		logger:          logger,
	}
}

// chat runs a chat completion and returns the first choice's content.
// op labels the transport metrics. jsonMode requests a JSON object response.
func (c *Client) chat(ctx context.Context, op, system, user string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	} else if c.maxAnswerTokens > 0 {
		req.MaxTokens = c.maxAnswerTokens
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(op, "error").Inc()
		return "", parseAPIError(err)
	}

	metrics.LLMRequestsTotal.WithLabelValues(op, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(op).Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrLLMProviderError)
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrLLMProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrLLMProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("llm API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("llm API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("llm API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	// Keep the cause in the chain so context cancellation stays observable
	// through the provider sentinel.
	return fmt.Errorf("llm request failed: %w: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
