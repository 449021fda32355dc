package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agoralabs/debatemem/pkg/intelligence"
	"github.com/agoralabs/debatemem/pkg/storage"
)

// CalculateMemoryValueScore computes the retention value of one record.
//
// The score combines recency (turn distance behind the session's current
// turn counter), relevance to the reference query (cosine similarity), and
// role importance, each clamped to [0,1] before weighting. An empty
// reference query anchors relevance to the session topic when one is set,
// otherwise relevance contributes at full strength.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - recordID: The record to score
//   - referenceQuery: Optional relevance anchor
//
// Returns the value score in [0,1].
func (m *Manager) CalculateMemoryValueScore(ctx context.Context, recordID int64, referenceQuery string) (float64, error) {
	rec, err := m.index.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return 0, NewMemoryError("CalculateMemoryValueScore", ErrNotFound)
		}
		return 0, NewMemoryError("CalculateMemoryValueScore", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	reference, err := m.referenceEmbedding(ctx, referenceQuery)
	if err != nil {
		return 0, NewMemoryError("CalculateMemoryValueScore", err)
	}

	return m.valueScorer.Score(rec, reference, m.currentTurn(), time.Now()), nil
}

// TruncateLowValueMemories removes this session's records whose value score
// falls below the threshold.
//
// The operation is idempotent: records already gone are skipped, and a
// second call with the same threshold removes nothing (survivors scored at
// or above the threshold still do).
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - threshold: Minimum value score to survive, in [0,1]
//   - referenceQuery: Optional relevance anchor (see CalculateMemoryValueScore)
//
// Returns the removed record IDs and an estimate of context tokens freed.
func (m *Manager) TruncateLowValueMemories(ctx context.Context, threshold float64, referenceQuery string) (*TruncationResult, error) {
	if threshold < 0 || threshold > 1 {
		return nil, NewMemoryError("TruncateLowValueMemories", ErrInvalidConfig)
	}

	records, err := m.index.List(ctx, &storage.ListOptions{SessionID: m.sessionID})
	if err != nil {
		return nil, NewMemoryError("TruncateLowValueMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	reference, err := m.referenceEmbedding(ctx, referenceQuery)
	if err != nil {
		return nil, NewMemoryError("TruncateLowValueMemories", err)
	}

	result := &TruncationResult{}
	now := time.Now()
	currentTurn := m.currentTurn()

	for _, rec := range records {
		if m.valueScorer.Score(rec, reference, currentTurn, now) >= threshold {
			continue
		}
		if err := m.index.Delete(ctx, rec.ID); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				continue
			}
			return result, NewMemoryError("TruncateLowValueMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
		}
		result.RemovedIDs = append(result.RemovedIDs, rec.ID)
		result.TokensSaved += EstimateTokens(rec.Text)
	}

	return result, nil
}

// DeduplicateMemories removes near-duplicate turns from this session.
//
// The older member of each duplicate pair is removed, so the most recent
// phrasing survives and a pair never loses both members. A zero threshold
// uses the configured default.
//
// Returns the removed record IDs, the resolved duplicate pairs, and an
// estimate of context tokens freed.
func (m *Manager) DeduplicateMemories(ctx context.Context, simThreshold float64) (*DeduplicationResult, error) {
	if simThreshold < 0 || simThreshold > 1 {
		return nil, NewMemoryError("DeduplicateMemories", ErrInvalidConfig)
	}

	records, err := m.index.List(ctx, &storage.ListOptions{SessionID: m.sessionID})
	if err != nil {
		return nil, NewMemoryError("DeduplicateMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	dedup := m.dedup
	if simThreshold > 0 {
		dedup = intelligence.NewDeduplicator(simThreshold)
	}

	// Large sessions go through the index's neighbor search instead of the
	// quadratic pairwise plan.
	var planned []intelligence.DuplicatePair
	if len(records) > intelligence.PairwiseCutoff {
		planned, err = dedup.PlanNeighbors(ctx, m.index, m.sessionID, records)
		if err != nil {
			return nil, NewMemoryError("DeduplicateMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
		}
	} else {
		planned = dedup.Plan(records)
	}

	textByID := make(map[int64]string, len(records))
	for _, rec := range records {
		textByID[rec.ID] = rec.Text
	}

	result := &DeduplicationResult{}
	for _, pair := range planned {
		if err := m.index.Delete(ctx, pair.RemovedID); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				continue
			}
			return result, NewMemoryError("DeduplicateMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
		}
		result.RemovedIDs = append(result.RemovedIDs, pair.RemovedID)
		result.DuplicatePairs = append(result.DuplicatePairs, DuplicatePair{
			RemovedID: pair.RemovedID,
			KeptID:    pair.KeptID,
		})
		result.TokensSaved += EstimateTokens(textByID[pair.RemovedID])
	}

	return result, nil
}

// CompressOldMemories rewrites old turns with extractive summaries.
//
// A turn is old when it is at least ageTurns behind the session's current
// turn counter. Compression keeps the first and last sentences verbatim and
// samples the middle at the given ratio, then re-embeds and replaces the
// record (a new ID is assigned; turn index, role, and creation time are
// preserved). Turns whose compression saves nothing are left alone.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - ageTurns: Minimum age, in turns, for a record to be compressed
//   - ratio: Fraction of middle sentences to keep; 0 uses the configured
//     default
//
// Returns the compressed record count and the token estimates before and
// after.
func (m *Manager) CompressOldMemories(ctx context.Context, ageTurns int, ratio float64) (*CompressionResult, error) {
	if ageTurns < 0 || ratio < 0 || ratio > 1 {
		return nil, NewMemoryError("CompressOldMemories", ErrInvalidConfig)
	}

	records, err := m.index.List(ctx, &storage.ListOptions{SessionID: m.sessionID})
	if err != nil {
		return nil, NewMemoryError("CompressOldMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	compressor := m.compressor
	if ratio > 0 {
		compressor = intelligence.NewCompressor(ratio)
	}

	cutoff := m.currentTurn() - ageTurns

	result := &CompressionResult{}
	for _, rec := range records {
		if rec.TurnIndex >= cutoff {
			continue
		}

		shortened := compressor.Compress(rec.Text)
		if len(shortened) >= len(rec.Text) {
			continue
		}

		emb, err := m.embedder.Embed(ctx, shortened)
		if err != nil {
			m.logger.Warn("re-embedding failed, skipping compression for record",
				zap.Int64("id", rec.ID),
				zap.Error(err))
			continue
		}

		replacement := &storage.Record{
			ID:        m.node.Generate().Int64(),
			SessionID: rec.SessionID,
			Role:      rec.Role,
			Text:      shortened,
			Embedding: emb,
			TurnIndex: rec.TurnIndex,
			Topic:     rec.Topic,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		}

		if err := m.index.Delete(ctx, rec.ID); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				continue
			}
			return result, NewMemoryError("CompressOldMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
		}
		if err := m.index.Insert(ctx, replacement); err != nil {
			return result, NewMemoryError("CompressOldMemories", fmt.Errorf("%w: %v", ErrStorageOperation, err))
		}

		result.CompressedCount++
		result.OriginalTokens += EstimateTokens(rec.Text)
		result.CompressedTokens += EstimateTokens(shortened)
	}

	return result, nil
}

// Optimize dispatches a lifecycle operation by name.
//
// Supported operations and their parameters:
//   - OpTruncate: "threshold" (float64), "reference_query" (string)
//   - OpDeduplicate: "threshold" (float64)
//   - OpCompress: "age_turns" (int/float64), "ratio" (float64)
//
// Returns the operation's own result type (TruncationResult,
// DeduplicationResult, or CompressionResult), each carrying the token
// figures for the work done.
func (m *Manager) Optimize(ctx context.Context, op string, params map[string]interface{}) (interface{}, error) {
	switch op {
	case OpTruncate:
		threshold, _ := params["threshold"].(float64)
		query, _ := params["reference_query"].(string)
		return m.TruncateLowValueMemories(ctx, threshold, query)
	case OpDeduplicate:
		threshold, _ := params["threshold"].(float64)
		return m.DeduplicateMemories(ctx, threshold)
	case OpCompress:
		ratio, _ := params["ratio"].(float64)
		return m.CompressOldMemories(ctx, getIntConfig(params, "age_turns", 0), ratio)
	default:
		return nil, NewMemoryError("Optimize", fmt.Errorf("%w: %q", ErrUnknownOperation, op))
	}
}

// DetectMemoryInconsistencies checks a candidate statement against a role's
// stored turns.
//
// Prior turns are retrieved by semantic similarity within the session and
// role scope, then compared lexically: a turn that shares the statement's
// key terms but differs in negation polarity is flagged. The result is
// advisory; a low consistency score is a warning, never a veto.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - role: The role whose history is checked
//   - statement: The candidate statement
//   - simThreshold: Minimum semantic similarity for a prior turn to be
//     considered, in [0,1]
//
// Returns the consistency score, the related prior turns that were checked,
// and per-turn warnings.
func (m *Manager) DetectMemoryInconsistencies(ctx context.Context, role, statement string, simThreshold float64) (*ConsistencyResult, error) {
	if role == "" || statement == "" {
		return nil, NewMemoryError("DetectMemoryInconsistencies", ErrInvalidInput)
	}
	if simThreshold < 0 || simThreshold > 1 {
		return nil, NewMemoryError("DetectMemoryInconsistencies", ErrInvalidConfig)
	}

	emb, err := m.embedder.Embed(ctx, statement)
	if err != nil {
		return nil, NewMemoryError("DetectMemoryInconsistencies", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}

	candidates, err := m.index.Query(ctx, emb, &storage.QueryOptions{
		SessionID: m.sessionID,
		Role:      role,
		Limit:     50,
		MinScore:  simThreshold,
	})
	if err != nil {
		return nil, NewMemoryError("DetectMemoryInconsistencies", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	report := m.checker.CompareStatement(statement, candidates)

	result := &ConsistencyResult{
		HasInconsistencies: len(report.Inconsistencies) > 0,
		ConsistencyScore:   report.Score,
		CheckedTurns:       report.CheckedPairs,
	}
	for _, rec := range candidates {
		result.Related = append(result.Related, fromStorageRecord(rec))
	}
	for _, inc := range report.Inconsistencies {
		result.Warnings = append(result.Warnings, InconsistencyWarning{
			TurnIndex:   inc.RecordB.TurnIndex,
			RecordID:    inc.RecordB.ID,
			SharedTerms: inc.SharedTerms,
			Excerpt:     inc.RecordB.Text,
		})
	}

	return result, nil
}

// referenceEmbedding resolves the relevance anchor for value scoring: the
// explicit query when given, the session topic otherwise, nil when neither
// exists.
func (m *Manager) referenceEmbedding(ctx context.Context, referenceQuery string) ([]float64, error) {
	anchor := referenceQuery
	if anchor == "" {
		anchor = m.topic
	}
	if anchor == "" {
		return nil, nil
	}

	emb, err := m.embedder.Embed(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return emb, nil
}
