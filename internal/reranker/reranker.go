// Package reranker provides re-ranking capabilities for knowledge retrieval results.
//
// Re-ranking uses cross-encoder scoring to improve precision by evaluating
// query-passage pairs together rather than independently.
//
// # Trade-offs
//
// Reranking is opt-in per search (SearchOptions.Rerank).
//
//   - Latency: one extra scoring call per dataset
//   - Quality: better ordering when the retrieval scores of the top results are close
//   - Cost: bounded by the rerank limit, since only the first N results are ever scored
//
// A failing or missing scorer never fails a search; the original results are returned.
package reranker

import (
	"context"
	"errors"
)

// DefaultMaxResults is the number of leading results considered for reranking.
const DefaultMaxResults = 20

// ErrUnavailable is returned by scorers whose backing model cannot be reached.
var ErrUnavailable = errors.New("rerank model unavailable")

// Score is one scored passage. Index refers to the position in the contents slice that
// was passed to Scorer.Score.
type Score struct {
	Index int
	Score float64
}

// Scorer defines the cross-encoder scoring capability.
type Scorer interface {
	// Score rates each content against the query. Results may come back in any order
	// and may cover only a subset of the contents.
	Score(ctx context.Context, query string, contents []string) ([]Score, error)

	// ModelName returns the model identifier reported alongside reranked results.
	ModelName() string
}
