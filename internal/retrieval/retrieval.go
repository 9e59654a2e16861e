// Package retrieval defines the canonical result records shared by the retrieval client,
// the reranker and the search orchestrator, and normalizes provider records into them.
package retrieval

import "fmt"

// UnknownDocument is the source reported for records whose document name cannot be found.
const UnknownDocument = "Unknown Document"

// Error kinds surfaced in a dataset report.
const (
	KindRequestFailed     = "request_failed"
	KindMalformedResponse = "malformed_response"
)

// RawRecord is one entry of a provider's "records" array, decoded without a schema.
type RawRecord map[string]any

// Result is the canonical, provider-independent representation of one retrieved passage.
// A nil Score means the provider did not report one; it is not the same as zero.
type Result struct {
	Source  string   `json:"source" yaml:"source"`
	Score   *float64 `json:"score" yaml:"score"`
	Content *string  `json:"content" yaml:"content"`
}

// HasContent reports whether the result carries passage text.
func (r Result) HasContent() bool {
	return r.Content != nil
}

// RerankedResult is a Result re-scored by a cross-encoder.
type RerankedResult struct {
	Source         string   `json:"source" yaml:"source"`
	OriginalScore  *float64 `json:"original_score" yaml:"original_score"`
	RerankScore    float64  `json:"rerank_score" yaml:"rerank_score"`
	RerankPosition int      `json:"rerank_position" yaml:"rerank_position"`
	Content        string   `json:"content" yaml:"content"`
}

// Error is the structured failure of a single dataset retrieval.
type Error struct {
	Kind    string `json:"kind" yaml:"kind"`
	Code    int    `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Preview string `json:"response_preview,omitempty" yaml:"response_preview,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindMalformedResponse:
		return fmt.Sprintf("%s: response does not contain a records array: %q", e.Kind, e.Preview)
	case e.Code != 0:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}
