package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/knoguchi/kbsearch/internal/embedder"
)

// EmbeddingScorer scores passages by cosine similarity between the query embedding and
// each passage embedding. It is a bi-encoder and ranks less precisely than a
// cross-encoder, but only needs an embedding model.
type EmbeddingScorer struct {
	embedder embedder.Embedder
}

// NewEmbeddingScorer creates a scorer backed by the given embedder.
func NewEmbeddingScorer(e embedder.Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: e}
}

// Score embeds the query and the contents in one batch.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, contents []string) ([]Score, error) {
	if len(contents) == 0 {
		return []Score{}, nil
	}
	if s.embedder == nil {
		return nil, ErrUnavailable
	}

	texts := make([]string, 0, len(contents)+1)
	texts = append(texts, query)
	texts = append(texts, contents...)

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	queryVec := vectors[0]
	scores := make([]Score, len(contents))
	for i, vec := range vectors[1:] {
		sim, err := cosine(queryVec, vec)
		if err != nil {
			return nil, fmt.Errorf("passage %d: %w", i, err)
		}
		scores[i] = Score{Index: i, Score: sim}
	}
	return scores, nil
}

// ModelName returns the embedding model name.
func (s *EmbeddingScorer) ModelName() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.ModelName()
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
