package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/knoguchi/kbsearch/internal/httpclient"
)

// DefaultHTTPModel is the cross-encoder requested from the rerank service.
const DefaultHTTPModel = "bge-reranker-v2-m3"

// RerankRequest is the request payload for the rerank endpoint.
type RerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// RerankResponseResult is a single result in the rerank response.
type RerankResponseResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RerankResponse is the response from the rerank endpoint.
type RerankResponse struct {
	Results []RerankResponseResult `json:"results"`
	// Model is the model the service actually served; it is only logged.
	Model string `json:"model"`
}

// HTTPScorer implements Scorer against a cross-encoder service exposing POST /v1/rerank.
type HTTPScorer struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPScorer constructs a new HTTPScorer. If client is nil, a pooled client with the
// given timeout is used.
func NewHTTPScorer(baseURL, model string, timeout time.Duration, logger *slog.Logger, client *http.Client) *HTTPScorer {
	if model == "" {
		model = DefaultHTTPModel
	}
	if client == nil {
		client = httpclient.NewPooledClient(timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPScorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger,
	}
}

// Score sends the contents to the rerank service. The service's index refers to the
// position in contents.
func (s *HTTPScorer) Score(ctx context.Context, query string, contents []string) ([]Score, error) {
	if len(contents) == 0 {
		return []Score{}, nil
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("%w: rerank URL not configured", ErrUnavailable)
	}

	start := time.Now()

	payload, err := json.Marshal(RerankRequest{
		Query:      query,
		Candidates: contents,
		Model:      s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call rerank endpoint: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp RerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make([]Score, len(rerankResp.Results))
	for i, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(contents) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(contents))
		}
		scores[i] = Score{Index: r.Index, Score: r.Score}
	}

	s.logger.Debug("rerank_scored",
		slog.Int("candidate_count", len(contents)),
		slog.String("model", rerankResp.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return scores, nil
}

// ModelName returns the model identifier for logging/debugging.
func (s *HTTPScorer) ModelName() string {
	return s.model
}

var _ Scorer = (*HTTPScorer)(nil)
