package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agoralabs/debatemem/pkg/llm"
)

// Reranker scores a candidate's relevance to a query on [0,1].
type Reranker interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// LLMReranker asks an LLM to judge relevance.
//
// It is a second-stage refinement: the fused retrieval score still carries
// half the weight by default, so a noisy LLM judgment reorders borderline
// candidates without discarding the retrieval signal.
type LLMReranker struct {
	llm llm.Provider
}

// NewLLMReranker creates a reranker backed by the given provider.
func NewLLMReranker(provider llm.Provider) *LLMReranker {
	return &LLMReranker{llm: provider}
}

// Score asks the LLM for a relevance judgment and parses it from the
// response.
func (r *LLMReranker) Score(ctx context.Context, query, text string) (float64, error) {
	systemPrompt := `You are a relevance judge for debate memory retrieval.
Given a query and a candidate debate turn, rate how relevant the turn is to the query on a scale from 0.0 to 1.0.
Return a JSON object with a "relevance_score" field.`

	userPrompt := fmt.Sprintf("Query: %s\n\nCandidate turn: %s\n\nRate the relevance and return JSON: {\"relevance_score\": 0.0-1.0}", query, text)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	response, err := r.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0.0), llm.WithMaxTokens(50))
	if err != nil {
		return 0, err
	}

	return parseRelevanceResponse(response)
}

// parseRelevanceResponse extracts the relevance score from an LLM response.
func parseRelevanceResponse(response string) (float64, error) {
	if strings.Contains(response, "{") && strings.Contains(response, "}") {
		start := strings.Index(response, "{")
		end := strings.LastIndex(response, "}") + 1
		jsonStr := response[start:end]

		var result map[string]interface{}
		if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
			if score, ok := result["relevance_score"].(float64); ok {
				return math.Max(0.0, math.Min(1.0, score)), nil
			}
		}
	}

	// Fallback: first number in the response.
	re := regexp.MustCompile(`\d+\.?\d*`)
	if match := re.FindString(response); match != "" {
		var score float64
		if _, err := fmt.Sscanf(match, "%f", &score); err == nil {
			return math.Max(0.0, math.Min(1.0, score)), nil
		}
	}

	return 0, fmt.Errorf("rerank: unparseable response: %q", response)
}
