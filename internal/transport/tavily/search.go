// Package tavily implements the web search fallback against the Tavily
// search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
	"github.com/kailas-cloud/corag/internal/metrics"
)

// Config holds the search provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client calls the Tavily /search endpoint and adapts hits into chunks.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	maxResults int
	logger     *zap.Logger
}

// NewClient creates a web search client.
func NewClient(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxResults: maxResults,
		logger:     logger,
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns supplementary chunks for a query. Transport and non-2xx
// failures are wrapped with domain.ErrSearchUnavailable so the routing layer
// can degrade instead of failing the request.
func (c *Client) Search(ctx context.Context, query string) ([]chunk.Chunk, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.WebFallbackTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("web search request: %w: %w", err, domain.ErrSearchUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.WebFallbackTotal.WithLabelValues("error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search status %d: %s: %w", resp.StatusCode, snippet, domain.ErrSearchUnavailable)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.WebFallbackTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode web search response: %w: %w", err, domain.ErrSearchUnavailable)
	}

	metrics.WebFallbackTotal.WithLabelValues("success").Inc()

	chunks := make([]chunk.Chunk, 0, len(parsed.Results))
	for i, res := range parsed.Results {
		id := fmt.Sprintf("web:%d", i+1)
		src := chunk.Source{DocumentID: res.URL, Heading: res.Title}
		chunks = append(chunks, chunk.New(id, res.Content, src, res.Score, chunk.Web))
	}

	c.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(chunks)),
	)

	return chunks, nil
}
