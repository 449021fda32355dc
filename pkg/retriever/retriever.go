// Package retriever implements hybrid retrieval over the vector index.
//
// Candidates are ranked by a weighted fusion of embedding similarity and
// lexical overlap, optionally refined by an LLM reranker. The fusion weight
// slides between pure-lexical (0.0) and pure-semantic (1.0) retrieval.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agoralabs/debatemem/pkg/embedder"
	"github.com/agoralabs/debatemem/pkg/lexical"
	"github.com/agoralabs/debatemem/pkg/storage"
)

// Result is one ranked retrieval hit.
type Result struct {
	// ID is the stored record ID.
	ID int64

	// SessionID is the owning session.
	SessionID string

	// Role is the debate role that produced the turn.
	Role string

	// Text is the turn content.
	Text string

	// TurnIndex is the turn position within its session.
	TurnIndex int

	// Topic is the optional topic tag.
	Topic string

	// Metadata carries the stored metadata.
	Metadata map[string]interface{}

	// CreatedAt is the storage timestamp.
	CreatedAt time.Time

	// SemanticScore is the raw embedding cosine similarity.
	SemanticScore float64

	// LexicalScore is the normalized lexical score within this candidate
	// set, or zero when lexical scoring was unavailable.
	LexicalScore float64

	// Score is the fused relevance score used for ranking.
	Score float64

	// Rank is the 1-based position in the final ranking.
	Rank int
}

// Config configures a Retriever.
type Config struct {
	// Index is the vector index to search. Required.
	Index storage.VectorIndex

	// Embedder converts queries to vectors. Required.
	Embedder embedder.Provider

	// Lexical scores keyword overlap. Optional; when nil, retrieval is
	// semantic-only and fusion weight is ignored.
	Lexical lexical.Scorer

	// Reranker refines the final ranking. Optional.
	Reranker Reranker

	// RerankWeight blends the fused score with the reranker's score:
	// final = RerankWeight*fused + (1-RerankWeight)*rerank.
	// Defaults to 0.5 when a Reranker is set.
	RerankWeight float64

	// DefaultWeight is the fusion weight used when a search does not set
	// one. Defaults to 0.7 (semantic-leaning).
	DefaultWeight float64

	// DefaultTopK is the result count used when a search does not set one.
	// Defaults to 5.
	DefaultTopK int

	// DefaultThreshold drops results whose fused score falls below it.
	// Defaults to 0 (no filtering).
	DefaultThreshold float64

	// Logger logs fallbacks and degraded modes. Defaults to a no-op.
	Logger *zap.Logger
}

// Retriever executes hybrid searches against a vector index.
type Retriever struct {
	index        storage.VectorIndex
	embedder     embedder.Provider
	lexical      lexical.Scorer
	reranker     Reranker
	rerankWeight float64
	weight       float64
	topK         int
	threshold    float64
	logger       *zap.Logger
}

// New creates a Retriever from cfg.
func New(cfg *Config) (*Retriever, error) {
	if cfg == nil || cfg.Index == nil {
		return nil, fmt.Errorf("retriever: index is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("retriever: embedder is required")
	}

	weight := cfg.DefaultWeight
	if weight == 0 {
		weight = 0.7
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("retriever: default weight %v out of range [0,1]", weight)
	}

	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 5
	}

	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		return nil, fmt.Errorf("retriever: default threshold %v out of range [0,1]", cfg.DefaultThreshold)
	}

	rerankWeight := cfg.RerankWeight
	if cfg.Reranker != nil && rerankWeight == 0 {
		rerankWeight = 0.5
	}
	if rerankWeight < 0 || rerankWeight > 1 {
		return nil, fmt.Errorf("retriever: rerank weight %v out of range [0,1]", rerankWeight)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		index:        cfg.Index,
		embedder:     cfg.Embedder,
		lexical:      cfg.Lexical,
		reranker:     cfg.Reranker,
		rerankWeight: rerankWeight,
		weight:       weight,
		topK:         topK,
		threshold:    cfg.DefaultThreshold,
		logger:       logger,
	}, nil
}

// Search retrieves the top-k most relevant turns for the query.
//
// The pipeline: embed the query once, over-fetch candidates from the vector
// index under the session/role filter, score lexical overlap across the
// candidate set, fuse the two channels with the fusion weight, drop
// candidates below the relevance threshold, and truncate to top-k. An empty
// result is a valid outcome, never an error.
func (r *Retriever) Search(ctx context.Context, query string, opts ...SearchOption) ([]*Result, error) {
	options := r.applySearchOptions(opts)

	if options.Weight < 0 || options.Weight > 1 {
		return nil, fmt.Errorf("retriever: fusion weight %v out of range [0,1]", options.Weight)
	}
	if options.Threshold < 0 || options.Threshold > 1 {
		return nil, fmt.Errorf("retriever: threshold %v out of range [0,1]", options.Threshold)
	}
	if options.TopK <= 0 {
		return nil, nil
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}

	// Over-fetch so threshold filtering and lexical re-ordering still have
	// a full top-k to choose from.
	candidates, err := r.index.Query(ctx, queryEmbedding, &storage.QueryOptions{
		SessionID: options.SessionID,
		Role:      options.Role,
		Limit:     options.TopK * 2,
		Filters:   options.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("retriever: index query: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]*Result, len(candidates))
	for i, rec := range candidates {
		results[i] = &Result{
			ID:            rec.ID,
			SessionID:     rec.SessionID,
			Role:          rec.Role,
			Text:          rec.Text,
			TurnIndex:     rec.TurnIndex,
			Topic:         rec.Topic,
			Metadata:      rec.Metadata,
			CreatedAt:     rec.CreatedAt,
			SemanticScore: rec.Score,
		}
	}

	r.fuseScores(ctx, query, results, options.Weight)

	// Threshold filter. No backfill: fewer than top-k results is the
	// correct answer when the session lacks relevant turns.
	filtered := results[:0]
	for _, res := range results {
		if res.Score >= options.Threshold {
			filtered = append(filtered, res)
		}
	}
	results = filtered

	sortByScore(results)

	if len(results) > options.TopK {
		results = results[:options.TopK]
	}

	if options.Rerank && r.reranker != nil {
		r.rerank(ctx, query, results)
		sortByScore(results)
	}

	for i, res := range results {
		res.Rank = i + 1
	}

	return results, nil
}

// fuseScores computes the fused score for each candidate in place.
//
// Lexical scores are min-max normalized within the candidate set before
// fusion so the two channels share a scale. When lexical scoring fails, the
// search degrades to semantic-only rather than failing outright.
func (r *Retriever) fuseScores(ctx context.Context, query string, results []*Result, weight float64) {
	var lexScores []float64
	if r.lexical != nil {
		docs := make([]lexical.Document, len(results))
		for i, res := range results {
			docs[i] = lexical.Document{ID: strconv.FormatInt(res.ID, 10), Text: res.Text}
		}

		scores, err := r.lexical.Score(ctx, query, docs)
		if err != nil {
			r.logger.Warn("lexical scoring unavailable, using semantic-only scores",
				zap.Error(err))
		} else {
			lexScores = normalizeMinMax(scores)
		}
	}

	for i, res := range results {
		if lexScores == nil {
			res.Score = res.SemanticScore
			continue
		}
		res.LexicalScore = lexScores[i]
		res.Score = weight*res.SemanticScore + (1-weight)*res.LexicalScore
	}
}

// rerank blends each result's fused score with the reranker's relevance
// judgment. A failed rerank call leaves that result's fused score intact.
func (r *Retriever) rerank(ctx context.Context, query string, results []*Result) {
	for _, res := range results {
		score, err := r.reranker.Score(ctx, query, res.Text)
		if err != nil {
			r.logger.Warn("rerank failed for candidate, keeping fused score",
				zap.Int64("id", res.ID),
				zap.Error(err))
			continue
		}
		res.Score = r.rerankWeight*res.Score + (1-r.rerankWeight)*score
	}
}

// sortByScore orders results by fused score descending, breaking ties by
// recency so newer turns win.
func sortByScore(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}

// normalizeMinMax rescales scores into [0,1] within the candidate set. A
// degenerate spread maps nonzero scores to 1 and zero scores to 0.
func normalizeMinMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	spread := maxScore - minScore
	for i, s := range scores {
		if spread == 0 {
			if s > 0 {
				out[i] = 1
			}
			continue
		}
		out[i] = (s - minScore) / spread
	}

	return out
}
