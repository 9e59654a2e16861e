// Package embedder turns passages into vectors for similarity scoring. It backs the
// embedding reranker, which ranks retrieved passages by cosine similarity to the query
// when no cross-encoder is deployed.
package embedder

import "context"

// Embedder produces one vector per input text.
type Embedder interface {
	// EmbedBatch returns the vectors in input order. All vectors share one dimension.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName is reported as the rerank model.
	ModelName() string
}
