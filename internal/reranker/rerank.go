package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/knoguchi/kbsearch/internal/retrieval"
)

// Outcome is the result of a rerank attempt. When Reranked is false, Results holds the
// input list unchanged and Ranked is empty.
type Outcome struct {
	Results  []retrieval.Result
	Ranked   []retrieval.RerankedResult
	Reranked bool
	Model    string
}

// Reranker reorders canonical results with a Scorer.
type Reranker struct {
	scorer Scorer
	logger *slog.Logger
}

// Option is a functional option for configuring Reranker.
type Option func(*Reranker)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		r.logger = logger
	}
}

// New creates a Reranker. A nil scorer is allowed: every rerank then falls back.
func New(scorer Scorer, opts ...Option) *Reranker {
	r := &Reranker{
		scorer: scorer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelName returns the scorer's model, or "" without a scorer.
func (r *Reranker) ModelName() string {
	if r.scorer == nil {
		return ""
	}
	return r.scorer.ModelName()
}

// Rerank scores the first maxResults results that carry content and returns them in
// descending rerank score. Results beyond maxResults are never considered. Equal scores
// keep their original relative order.
func (r *Reranker) Rerank(ctx context.Context, query string, results []retrieval.Result, maxResults int) Outcome {
	fallback := Outcome{Results: results}

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	candidates := results
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	// pool[i] is the index in candidates of the i-th content sent to the scorer.
	contents := make([]string, 0, len(candidates))
	pool := make([]int, 0, len(candidates))
	for i, res := range candidates {
		if !res.HasContent() {
			continue
		}
		contents = append(contents, *res.Content)
		pool = append(pool, i)
	}
	if len(contents) == 0 {
		return fallback
	}

	if r.scorer == nil {
		r.logger.Warn("rerank_unavailable_using_original_order",
			slog.String("error", ErrUnavailable.Error()))
		return fallback
	}

	start := time.Now()
	scores, err := r.scorer.Score(ctx, query, contents)
	if err == nil {
		err = validateScores(scores, len(contents))
	}
	if err != nil {
		r.logger.Warn("rerank_failed_using_original_order",
			slog.String("model", r.scorer.ModelName()),
			slog.Int("candidate_count", len(contents)),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fallback
	}

	ordered := make([]Score, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Index < ordered[j].Index
	})

	ranked := make([]retrieval.RerankedResult, len(ordered))
	for pos, s := range ordered {
		original := candidates[pool[s.Index]]
		ranked[pos] = retrieval.RerankedResult{
			Source:         original.Source,
			OriginalScore:  original.Score,
			RerankScore:    s.Score,
			RerankPosition: pos + 1,
			Content:        *original.Content,
		}
	}

	r.logger.Debug("rerank_completed",
		slog.String("model", r.scorer.ModelName()),
		slog.Int("candidate_count", len(contents)),
		slog.Int("ranked_count", len(ranked)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return Outcome{
		Results:  results,
		Ranked:   ranked,
		Reranked: true,
		Model:    r.scorer.ModelName(),
	}
}

// validateScores rejects empty results and out-of-range or repeated indices.
func validateScores(scores []Score, n int) error {
	if len(scores) == 0 {
		return fmt.Errorf("scorer returned no results for %d candidates", n)
	}
	seen := make(map[int]bool, len(scores))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= n {
			return fmt.Errorf("invalid result index %d for %d candidates", s.Index, n)
		}
		if seen[s.Index] {
			return fmt.Errorf("duplicate result index %d", s.Index)
		}
		seen[s.Index] = true
	}
	return nil
}
