// Package llm is the text-generation client behind the LLM reranker. The reranker asks
// the model to grade passages and expects a JSON document back, so only single-shot,
// non-streaming generation is supported.
package llm

import "context"

// GenerateOptions tune one generation.
type GenerateOptions struct {
	// Model overrides the client's model.
	Model string

	SystemPrompt string

	// Temperature is always sent; 0 gives repeatable grades.
	Temperature float32

	// MaxTokens caps the response length when positive.
	MaxTokens int

	// JSON constrains the output to a JSON document.
	JSON bool
}

// LLM generates a complete response for a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
