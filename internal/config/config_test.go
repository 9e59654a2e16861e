package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://localhost/v1", cfg.DifyBaseURL)
	assert.Equal(t, 30*time.Second, cfg.DifyTimeout)
	assert.Equal(t, 6, cfg.RetrievalTopK)
	assert.False(t, cfg.RetrievalScoreThresholdEnabled)
	assert.Equal(t, 123.0, cfg.RetrievalScoreThreshold)
	assert.Equal(t, 0.6, cfg.RetrievalWeights)
	assert.Equal(t, RerankProviderHTTP, cfg.RerankProvider)
	assert.Equal(t, "bge-reranker-v2-m3", cfg.RerankModel)
	assert.Equal(t, 20, cfg.RerankLimit)
	assert.Equal(t, 4, cfg.SearchConcurrency)
	assert.Equal(t, "datasets.json", cfg.CatalogFile)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
}

func TestLoad_FromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("DIFY_BASE_URL", "https://kb.example.com/v1")
	t.Setenv("DIFY_API_KEY", "dataset-abc")
	t.Setenv("RETRIEVAL_TOP_K", "10")
	t.Setenv("RERANK_PROVIDER", " LLM ")
	t.Setenv("RERANK_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://kb.example.com/v1", cfg.DifyBaseURL)
	assert.Equal(t, "dataset-abc", cfg.DifyAPIKey)
	assert.Equal(t, 10, cfg.RetrievalTopK)
	assert.Equal(t, RerankProviderLLM, cfg.RerankProvider)
	assert.Equal(t, 5*time.Second, cfg.RerankTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_DotEnv(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile(".env", []byte("CATALOG_FILE=/tmp/kb/datasets.json\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CATALOG_FILE") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kb/datasets.json", cfg.CatalogFile)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown provider", key: "RERANK_PROVIDER", value: "cohere"},
		{name: "zero top k", key: "RETRIEVAL_TOP_K", value: "0"},
		{name: "zero concurrency", key: "SEARCH_CONCURRENCY", value: "0"},
		{name: "negative rate", key: "RETRIEVAL_RATE_LIMIT", value: "-1"},
		{name: "not a number", key: "HTTP_PORT", value: "eighty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
