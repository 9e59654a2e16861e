// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Rerank providers.
const (
	RerankProviderHTTP      = "http"
	RerankProviderLLM       = "llm"
	RerankProviderEmbedding = "embedding"
	RerankProviderNone      = "none"
)

// Config holds all configuration for kbsearch
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Knowledge API
	DifyBaseURL string        `env:"DIFY_BASE_URL" envDefault:"http://localhost/v1"`
	DifyAPIKey  string        `env:"DIFY_API_KEY"`
	DifyTimeout time.Duration `env:"DIFY_TIMEOUT" envDefault:"30s"`

	// Retrieval parameters sent with every query
	RetrievalTopK                  int     `env:"RETRIEVAL_TOP_K" envDefault:"6"`
	RetrievalScoreThresholdEnabled bool    `env:"RETRIEVAL_SCORE_THRESHOLD_ENABLED" envDefault:"false"`
	RetrievalScoreThreshold        float64 `env:"RETRIEVAL_SCORE_THRESHOLD" envDefault:"123"`
	RetrievalWeights               float64 `env:"RETRIEVAL_WEIGHTS" envDefault:"0.6"`
	RetrievalRateLimit             float64 `env:"RETRIEVAL_RATE_LIMIT" envDefault:"0"`
	SearchConcurrency              int     `env:"SEARCH_CONCURRENCY" envDefault:"4"`

	// Reranking
	RerankProvider string        `env:"RERANK_PROVIDER" envDefault:"http"`
	RerankURL      string        `env:"RERANK_URL"`
	RerankModel    string        `env:"RERANK_MODEL" envDefault:"bge-reranker-v2-m3"`
	RerankTimeout  time.Duration `env:"RERANK_TIMEOUT" envDefault:"30s"`
	RerankLimit    int           `env:"RERANK_LIMIT" envDefault:"20"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`

	// Dataset catalog
	CatalogFile      string `env:"CATALOG_FILE" envDefault:"datasets.json"`
	CatalogCacheSize int    `env:"CATALOG_CACHE_SIZE" envDefault:"128"`

	// PostgreSQL, used for the catalog instead of CatalogFile when set
	DatabaseURL string `env:"DATABASE_URL"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env.Parse cannot.
func (c *Config) Validate() error {
	c.RerankProvider = strings.ToLower(strings.TrimSpace(c.RerankProvider))
	switch c.RerankProvider {
	case RerankProviderHTTP, RerankProviderLLM, RerankProviderEmbedding, RerankProviderNone:
	default:
		return fmt.Errorf("invalid RERANK_PROVIDER %q: must be http, llm, embedding or none", c.RerankProvider)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	if c.SearchConcurrency <= 0 {
		return fmt.Errorf("SEARCH_CONCURRENCY must be positive, got %d", c.SearchConcurrency)
	}
	if c.RetrievalRateLimit < 0 {
		return fmt.Errorf("RETRIEVAL_RATE_LIMIT must not be negative, got %v", c.RetrievalRateLimit)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
