package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knoguchi/kbsearch/internal/llm"
)

// maxPromptContent truncates each passage in the scoring prompt.
const maxPromptContent = 500

// LLMScorer uses an LLM as a cross-encoder: the model sees the query and all passages
// together and rates each one.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithModel sets the model to use for scoring.
func WithModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.model = model
	}
}

// NewLLMScorer creates a new LLM-based scorer.
func NewLLMScorer(llmClient llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{
		llmClient: llmClient,
		model:     llm.DefaultModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type llmRerankResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// Score asks the LLM for a 0..1 relevance score per passage. Passages the model skips
// are not returned.
func (s *LLMScorer) Score(ctx context.Context, query string, contents []string) ([]Score, error) {
	if len(contents) == 0 {
		return []Score{}, nil
	}
	if s.llmClient == nil {
		return nil, ErrUnavailable
	}

	response, err := s.llmClient.Generate(ctx, buildScoringPrompt(query, contents), llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   1024,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: LLM scoring failed: %v", ErrUnavailable, err)
	}

	return parseScoringResponse(response, len(contents))
}

// ModelName returns the LLM model used for scoring.
func (s *LLMScorer) ModelName() string {
	return s.model
}

func buildScoringPrompt(query string, contents []string) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each document's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocuments to score:\n")
	for i, content := range contents {
		if runes := []rune(content); len(runes) > maxPromptContent {
			content = string(runes[:maxPromptContent]) + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, content)
	}

	sb.WriteString(`Score each document from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}, ...]}

Be strict: irrelevant documents should score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseScoringResponse extracts scores from the model output, tolerating markdown code
// fences. Out-of-range indices are skipped; the first score for a repeated index wins.
func parseScoringResponse(response string, n int) ([]Score, error) {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```"); idx != -1 {
		rest := strings.TrimPrefix(response[idx+3:], "json")
		if end := strings.Index(rest, "```"); end != -1 {
			response = strings.TrimSpace(rest[:end])
		}
	}

	var parsed llmRerankResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	seen := make(map[int]bool, n)
	scores := make([]Score, 0, len(parsed.Scores))
	for _, ps := range parsed.Scores {
		if ps.DocIndex < 0 || ps.DocIndex >= n || seen[ps.DocIndex] {
			continue
		}
		seen[ps.DocIndex] = true
		scores = append(scores, Score{Index: ps.DocIndex, Score: clamp(ps.Score)})
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("rerank response contained no usable scores")
	}
	return scores, nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

var _ Scorer = (*LLMScorer)(nil)
