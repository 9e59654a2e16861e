package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"scores": []}`})
	}))
	defer server.Close()

	c := NewOllamaClient(WithBaseURL(server.URL+"/"), WithModel("qwen2.5"))
	out, err := c.Generate(t.Context(), "rate these", GenerateOptions{
		SystemPrompt: "be strict",
		MaxTokens:    256,
		JSON:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"scores": []}`, out)

	assert.Equal(t, "qwen2.5", got.Model)
	assert.Equal(t, "rate these", got.Prompt)
	assert.Equal(t, "be strict", got.System)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Options, "temperature")
	assert.EqualValues(t, 256, got.Options["num_predict"])
}

func TestOllamaClient_GenerateModelOverride(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer server.Close()

	c := NewOllamaClient(WithBaseURL(server.URL))
	_, err := c.Generate(t.Context(), "p", GenerateOptions{Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", got.Model)
	assert.Empty(t, got.Format)
	assert.NotContains(t, got.Options, "num_predict")
	assert.Contains(t, got.Options, "temperature")
}

func TestOllamaClient_GenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewOllamaClient(WithBaseURL(server.URL))
	_, err := c.Generate(t.Context(), "p", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model not loaded")
}
