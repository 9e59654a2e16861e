package dify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/knoguchi/kbsearch/internal/retrieval"
)

const (
	// SearchMethodHybrid combines lexical and vector similarity on the service side.
	SearchMethodHybrid = "hybrid_search"

	DefaultTopK           = 6
	DefaultScoreThreshold = 123
	DefaultWeights        = 0.6

	// previewLength is how much of an unexpected body is echoed back in an error.
	previewLength = 200
)

// RetrievalDefaults are the retrieval parameters sent with every query. They are
// configuration defaults, not part of the protocol.
type RetrievalDefaults struct {
	TopK                  int
	ScoreThresholdEnabled bool
	ScoreThreshold        float64
	Weights               float64
}

// DefaultRetrieval returns the retrieval parameters used when none are configured.
func DefaultRetrieval() RetrievalDefaults {
	return RetrievalDefaults{
		TopK:           DefaultTopK,
		ScoreThreshold: DefaultScoreThreshold,
		Weights:        DefaultWeights,
	}
}

// resolveRetrieval passes configured parameters through unchanged, so a zero threshold or
// weight is sent as zero. Only a non-positive top_k, which the service rejects, is replaced.
func resolveRetrieval(d *RetrievalDefaults) RetrievalDefaults {
	if d == nil {
		return DefaultRetrieval()
	}
	out := *d
	if out.TopK <= 0 {
		out.TopK = DefaultTopK
	}
	return out
}

type retrieveRequest struct {
	Query          string         `json:"query"`
	RetrievalModel retrievalModel `json:"retrieval_model"`
}

type retrievalModel struct {
	SearchMethod          string        `json:"search_method"`
	RerankingEnable       bool          `json:"reranking_enable"`
	RerankingMode         rerankingMode `json:"reranking_mode"`
	TopK                  int           `json:"top_k"`
	ScoreThresholdEnabled bool          `json:"score_threshold_enabled"`
	ScoreThreshold        float64       `json:"score_threshold"`
	Weights               float64       `json:"weights"`
}

type rerankingMode struct {
	RerankingProviderName string `json:"reranking_provider_name"`
	RerankingModelName    string `json:"reranking_model_name"`
}

// RetrieveResult is a successful retrieval: the raw records and the query as echoed
// by the service.
type RetrieveResult struct {
	Query   string
	Records []retrieval.RawRecord
}

func (c *Client) buildRetrieveRequest(query string) retrieveRequest {
	return retrieveRequest{
		Query: query,
		RetrievalModel: retrievalModel{
			SearchMethod: SearchMethodHybrid,
			// Remote reranking stays off; results are reranked locally when asked.
			RerankingEnable:       false,
			TopK:                  c.retrieval.TopK,
			ScoreThresholdEnabled: c.retrieval.ScoreThresholdEnabled,
			ScoreThreshold:        c.retrieval.ScoreThreshold,
			Weights:               c.retrieval.Weights,
		},
	}
}

// Retrieve runs one hybrid search against one dataset. Every failure is returned as a
// *retrieval.Error; the client never retries.
func (c *Client) Retrieve(ctx context.Context, datasetID, query string) (*RetrieveResult, error) {
	start := time.Now()
	logger := c.logger.With(slog.String("dataset_id", datasetID))

	req, err := c.newRequest(ctx, http.MethodPost, datasetPath(datasetID)+"/retrieve", c.buildRetrieveRequest(query))
	if err != nil {
		return nil, &retrieval.Error{Kind: retrieval.KindRequestFailed, Message: err.Error()}
	}

	resp, body, err := c.do(req)
	if err != nil {
		logger.Warn("retrieval_failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		rerr := &retrieval.Error{Kind: retrieval.KindRequestFailed, Message: err.Error()}
		if resp != nil {
			rerr.Code = resp.StatusCode
		}
		return nil, rerr
	}

	if !isSuccess(resp.StatusCode) {
		logger.Warn("retrieval_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", preview(body)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil, &retrieval.Error{
			Kind:    retrieval.KindRequestFailed,
			Code:    resp.StatusCode,
			Message: reasonPhrase(resp),
		}
	}

	result, ok := parseRetrieveResponse(body, query)
	if !ok {
		logger.Warn("retrieval_malformed_response", slog.String("body", preview(body)))
		return nil, &retrieval.Error{Kind: retrieval.KindMalformedResponse, Preview: preview(body)}
	}

	logger.Debug("retrieval_completed",
		slog.Int("record_count", len(result.Records)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return result, nil
}

// parseRetrieveResponse accepts any JSON object carrying a records array. Elements that
// are not objects become empty records so that normalization still sees them. The echoed
// query is read from query.content and falls back to the caller's query when that is
// absent or not a string.
func parseRetrieveResponse(body []byte, query string) (*RetrieveResult, bool) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false
	}

	items, ok := parsed["records"].([]any)
	if !ok {
		return nil, false
	}

	records := make([]retrieval.RawRecord, len(items))
	for i, item := range items {
		if obj, ok := item.(map[string]any); ok {
			records[i] = obj
		}
	}

	echoed := query
	if q, ok := parsed["query"].(map[string]any); ok {
		if content, ok := q["content"].(string); ok {
			echoed = content
		}
	}
	return &RetrieveResult{Query: echoed, Records: records}, true
}

func preview(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return string(runes)
}
