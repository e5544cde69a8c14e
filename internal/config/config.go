// Package config loads the corag service configuration from per-environment
// YAML files with ${VAR} expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the corag API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector index connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds OpenAI-compatible provider settings for generation,
// grading, reflection, and embeddings.
type LLMConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	ChatModel       string `yaml:"chat_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	Dimensions      int    `yaml:"dimensions"`
	MaxAnswerTokens int    `yaml:"max_answer_tokens"`
}

// WebSearchConfig holds web search fallback settings.
type WebSearchConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// PipelineConfig holds the corrective and reflective control-loop settings.
type PipelineConfig struct {
	RelevanceThreshold float64 `yaml:"relevance_threshold"` // label relevant at or above
	AmbiguousThreshold float64 `yaml:"ambiguous_threshold"` // label ambiguous at or above
	GroundingThreshold float64 `yaml:"grounding_threshold"` // reflection terminates at or above
	MaxIterations      *int    `yaml:"max_iterations"`      // refinement cap, 0 = single attempt, nil = default
	DefaultTopK        int     `yaml:"default_top_k"`
	RequestTimeoutSec  int     `yaml:"request_timeout_sec"`
}

// StorageConfig holds corpus index settings.
type StorageConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	IndexName       string `yaml:"index_name"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Reflective-loop requests chain several LLM round trips.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gpt-4o-mini"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.Dimensions <= 0 {
		c.LLM.Dimensions = 1536
	}
	if c.LLM.MaxAnswerTokens <= 0 {
		c.LLM.MaxAnswerTokens = 500
	}
	if c.WebSearch.BaseURL == "" {
		c.WebSearch.BaseURL = "https://api.tavily.com"
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = 3
	}
	if c.WebSearch.TimeoutSec <= 0 {
		c.WebSearch.TimeoutSec = 15
	}
	if c.Pipeline.RelevanceThreshold == 0 {
		c.Pipeline.RelevanceThreshold = 0.7
	}
	if c.Pipeline.AmbiguousThreshold == 0 {
		c.Pipeline.AmbiguousThreshold = 0.4
	}
	if c.Pipeline.GroundingThreshold == 0 {
		c.Pipeline.GroundingThreshold = 0.8
	}
	if c.Pipeline.MaxIterations == nil {
		two := 2
		c.Pipeline.MaxIterations = &two
	}
	if c.Pipeline.DefaultTopK <= 0 {
		c.Pipeline.DefaultTopK = 5
	}
	if c.Pipeline.RequestTimeoutSec <= 0 {
		c.Pipeline.RequestTimeoutSec = 120
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "corag:"
	}
	if c.Storage.IndexName == "" {
		c.Storage.IndexName = "corag:chunks:idx"
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 32
	}
	if c.Storage.HNSWEFConstruct <= 0 {
		c.Storage.HNSWEFConstruct = 400
	}
}

// Validate checks the configuration for correctness. Threshold violations
// are configuration errors: the service refuses to start rather than route
// queries with a broken label function.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	p := c.Pipeline
	if p.AmbiguousThreshold < 0 || p.RelevanceThreshold > 1 || p.AmbiguousThreshold >= p.RelevanceThreshold {
		return fmt.Errorf(
			"pipeline thresholds must satisfy 0 <= ambiguous (%g) < relevance (%g) <= 1",
			p.AmbiguousThreshold, p.RelevanceThreshold,
		)
	}
	if p.GroundingThreshold < 0 || p.GroundingThreshold > 1 {
		return fmt.Errorf("pipeline.grounding_threshold must be in [0,1], got %g", p.GroundingThreshold)
	}
	if p.MaxIterations != nil && *p.MaxIterations < 0 {
		return fmt.Errorf("pipeline.max_iterations must be >= 0, got %d", *p.MaxIterations)
	}
	return nil
}

// IterationCap returns the configured refinement cap, defaulting to 2.
func (p PipelineConfig) IterationCap() int {
	if p.MaxIterations == nil {
		return 2
	}
	return *p.MaxIterations
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
