package dify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/kbsearch/internal/retrieval"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL: server.URL + "/v1",
		APIKey:  "dataset-test-key",
		Timeout: 2 * time.Second,
		Logger:  testLogger(),
	})
}

func asRetrievalError(t *testing.T, err error) *retrieval.Error {
	t.Helper()
	var rerr *retrieval.Error
	require.True(t, errors.As(err, &rerr), "expected *retrieval.Error, got %T", err)
	return rerr
}

func TestClient_Retrieve_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/datasets/ds-1/retrieve", r.URL.Path)
		assert.Equal(t, "Bearer dataset-test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ruby class", body["query"])

		model := body["retrieval_model"].(map[string]any)
		assert.Equal(t, "hybrid_search", model["search_method"])
		assert.Equal(t, false, model["reranking_enable"])
		assert.Equal(t, float64(6), model["top_k"])
		assert.Equal(t, false, model["score_threshold_enabled"])
		assert.Equal(t, float64(123), model["score_threshold"])
		assert.Equal(t, 0.6, model["weights"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": {"content": "ruby class"},
			"records": [
				{"segment": {"content": "class Foo", "document": {"name": "ruby.md"}}, "score": 0.8421}
			]
		}`))
	})

	result, err := client.Retrieve(context.Background(), "ds-1", "ruby class")
	require.NoError(t, err)

	assert.Equal(t, "ruby class", result.Query)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 0.8421, result.Records[0]["score"])
}

func TestClient_Retrieve_QueryFallback(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"query absent", `{"records": []}`, 0},
		{"query is a string", `{"query": "ruby class", "records": [{"segment": {"content": "c"}, "score": 0.5}]}`, 1},
		{"content not a string", `{"query": {"content": 42}, "records": []}`, 0},
		{"content null", `{"query": {"content": null}, "records": [{}]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			result, err := client.Retrieve(context.Background(), "ds-1", "original query")
			require.NoError(t, err)
			assert.Equal(t, "original query", result.Query)
			assert.Len(t, result.Records, tt.want)
		})
	}
}

func TestClient_Retrieve_NonObjectRecordsKept(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records": [42, {"score": 0.1}]}`))
	})

	result, err := client.Retrieve(context.Background(), "ds-1", "q")
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Nil(t, result.Records[0])
}

func TestClient_Retrieve_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "dataset_not_found"}`))
	})

	result, err := client.Retrieve(context.Background(), "missing", "q")
	assert.Nil(t, result)

	rerr := asRetrievalError(t, err)
	assert.Equal(t, retrieval.KindRequestFailed, rerr.Kind)
	assert.Equal(t, http.StatusNotFound, rerr.Code)
	assert.Equal(t, "Not Found", rerr.Message)
}

func TestClient_Retrieve_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second, Logger: testLogger()})

	result, err := client.Retrieve(context.Background(), "ds-1", "q")
	assert.Nil(t, result)

	rerr := asRetrievalError(t, err)
	assert.Equal(t, retrieval.KindRequestFailed, rerr.Kind)
	assert.Zero(t, rerr.Code)
	assert.NotEmpty(t, rerr.Message)
}

func TestClient_Retrieve_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"records": []}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Retrieve(ctx, "ds-1", "q")
	rerr := asRetrievalError(t, err)
	assert.Equal(t, retrieval.KindRequestFailed, rerr.Kind)
}

func TestClient_Retrieve_MalformedResponse(t *testing.T) {
	long := `{"data": "` + strings.Repeat("x", 500) + `"}`

	tests := []struct {
		name string
		body string
	}{
		{"missing records", `{"data": []}`},
		{"records not array", `{"records": {"a": 1}}`},
		{"null records", `{"records": null}`},
		{"not json", `<html>gateway</html>`},
		{"long body", long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Retrieve(context.Background(), "ds-1", "q")
			rerr := asRetrievalError(t, err)
			assert.Equal(t, retrieval.KindMalformedResponse, rerr.Kind)
			assert.LessOrEqual(t, len([]rune(rerr.Preview)), 200)
			assert.True(t, strings.HasPrefix(tt.body, rerr.Preview))
		})
	}
}

func TestClient_Retrieve_ZeroThresholdAndWeightsSentAsIs(t *testing.T) {
	var model retrievalModel
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body retrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		model = body.RetrievalModel
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:   server.URL,
		Logger:    testLogger(),
		Retrieval: &RetrievalDefaults{TopK: 0, ScoreThreshold: 0, Weights: 0},
	})

	_, err := client.Retrieve(context.Background(), "ds-1", "q")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, model.TopK)
	assert.Zero(t, model.ScoreThreshold)
	assert.Zero(t, model.Weights)
}

func TestClient_Retrieve_CustomDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body retrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 10, body.RetrievalModel.TopK)
		assert.True(t, body.RetrievalModel.ScoreThresholdEnabled)
		assert.Equal(t, 0.5, body.RetrievalModel.ScoreThreshold)
		assert.False(t, body.RetrievalModel.RerankingEnable)
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		Logger:  testLogger(),
		Retrieval: &RetrievalDefaults{
			TopK:                  10,
			ScoreThresholdEnabled: true,
			ScoreThreshold:        0.5,
		},
	})

	_, err := client.Retrieve(context.Background(), "ds-1", "q")
	require.NoError(t, err)
}

func TestClient_ListDatasets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/datasets", r.URL.Path)
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("include_all"))

		_, _ = w.Write([]byte(`{"data": [
			{"id": "ds-1", "name": "Ruby", "description": null, "embedding_model": "bge-m3",
			 "embedding_model_provider": "ollama", "retrieval_model_dict": {"top_k": 3},
			 "doc_form": "text_model"},
			{"id": "", "name": "broken"}
		], "has_more": false}`))
	})

	datasets, err := client.ListDatasets(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "ds-1", datasets[0].ID)
	assert.Equal(t, "Ruby", datasets[0].Name)
	assert.Equal(t, "bge-m3", datasets[0].EmbeddingModel)
	assert.JSONEq(t, `{"top_k": 3}`, string(datasets[0].RetrievalModel))
	assert.False(t, datasets[0].FetchedAt.IsZero())
}

func TestClient_ListDatasets_Errors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	})
	_, err := client.ListDatasets(context.Background(), 40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'data'")

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err = client.ListDatasets(context.Background(), 40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
