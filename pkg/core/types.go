// Package core provides the debatemem Manager and memory orchestration.
package core

import "time"

// Debate roles. Roles partition memory within a session and drive
// role-scoped retrieval and role importance weighting.
const (
	// RoleProponent argues for the motion.
	RoleProponent = "proponent"

	// RoleOpponent argues against the motion.
	RoleOpponent = "opponent"

	// RoleModerator directs the debate and issues rulings.
	RoleModerator = "moderator"

	// RoleSystem marks framework-injected turns.
	RoleSystem = "system"
)

// MemoryRecord represents a single stored debate turn.
//
// A record contains:
//   - Text: The raw turn content, immutable once stored
//   - Embedding: Vector representation computed once at insertion
//   - Role, SessionID, TurnIndex: the turn's position in the debate
//
// Example:
//
//	record := &core.MemoryRecord{
//	    ID:        1234567890,
//	    SessionID: "debate_001",
//	    Role:      core.RoleProponent,
//	    Text:      "Renewable energy reduces long-term costs",
//	    TurnIndex: 3,
//	}
type MemoryRecord struct {
	// ID is the unique identifier of the record.
	ID int64 `json:"id"`

	// SessionID groups records into one debate session.
	SessionID string `json:"session_id"`

	// Role is the debate role that produced this turn.
	Role string `json:"role"`

	// Text is the turn content. Immutable once stored; compression
	// replaces the record rather than editing it.
	Text string `json:"text"`

	// Embedding is the vector embedding for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"embedding,omitempty"`

	// TurnIndex is the monotonic position of the turn within its session.
	TurnIndex int `json:"turn_index"`

	// Topic is an optional debate topic tag.
	Topic string `json:"topic,omitempty"`

	// Metadata contains additional structured information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`

	// Score is the relevance score from search operations (0.0-1.0).
	Score float64 `json:"score,omitempty"`
}

// RetrievalResult is one ranked hit from SearchMemories.
type RetrievalResult struct {
	// Record is the matching memory record.
	Record *MemoryRecord `json:"record"`

	// Score is the fused relevance score.
	Score float64 `json:"score"`

	// SemanticScore is the raw embedding similarity component.
	SemanticScore float64 `json:"semantic_score"`

	// LexicalScore is the normalized lexical component.
	LexicalScore float64 `json:"lexical_score"`

	// Rank is the 1-based position in the ranking.
	Rank int `json:"rank"`
}

// Zone names in context payload order.
const (
	// ZoneSystem carries role framing and debate instructions.
	ZoneSystem = "system"

	// ZonePriorCommitments carries the opposite side's history during
	// role reversal. Present only in reversal payloads.
	ZonePriorCommitments = "prior_commitments"

	// ZoneEvidence carries retrieved long-term memories.
	ZoneEvidence = "evidence"

	// ZoneRecent carries the short-term window.
	ZoneRecent = "recent"

	// ZoneTask carries the current task or question.
	ZoneTask = "task"
)

// Zone content markers. A payload is always structurally complete; these
// markers distinguish why a zone is empty.
const (
	// MarkerNoEvidence means retrieval ran and found nothing relevant.
	MarkerNoEvidence = "[no relevant evidence found]"

	// MarkerUnavailable means a read-path failure degraded the zone.
	MarkerUnavailable = "[zone unavailable]"

	// MarkerNotRequested means the caller opted the zone out.
	MarkerNotRequested = "[not requested]"

	// MarkerEmpty means the source had no content yet (e.g. an empty
	// short-term window at debate start).
	MarkerEmpty = "[empty]"
)

// ContextZone is one labeled section of a context payload.
type ContextZone struct {
	// Name is the zone label.
	Name string `json:"name"`

	// Content is the rendered zone text, or a marker constant.
	Content string `json:"content"`

	// TokenEstimate approximates the token cost of Content.
	TokenEstimate int `json:"token_estimate"`
}

// ContextPayload is the assembled input for a downstream generator. Zones
// appear in a fixed order; every requested zone is present even when empty.
type ContextPayload struct {
	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// Role is the role the payload was built for.
	Role string `json:"role"`

	// Zones holds the ordered zones.
	Zones []ContextZone `json:"zones"`

	// TotalTokenEstimate sums the zone estimates.
	TotalTokenEstimate int `json:"total_token_estimate"`
}

// Zone returns the named zone, or nil when absent.
func (p *ContextPayload) Zone(name string) *ContextZone {
	for i := range p.Zones {
		if p.Zones[i].Name == name {
			return &p.Zones[i]
		}
	}
	return nil
}

// InconsistencyWarning describes one detected contradiction against prior
// turns.
type InconsistencyWarning struct {
	// TurnIndex is the prior turn the statement contradicts.
	TurnIndex int `json:"turn_index"`

	// RecordID is the contradicted record.
	RecordID int64 `json:"record_id"`

	// SharedTerms are the key terms the statement and the turn share.
	SharedTerms []string `json:"shared_terms"`

	// Excerpt is the contradicted turn text.
	Excerpt string `json:"excerpt"`
}

// ConsistencyResult reports DetectMemoryInconsistencies findings. It is
// advisory: callers decide what to do with a low score.
type ConsistencyResult struct {
	// HasInconsistencies is true when at least one contradiction was
	// flagged.
	HasInconsistencies bool `json:"has_inconsistencies"`

	// ConsistencyScore is 1 - flagged/checked; 1.0 when nothing
	// comparable was found.
	ConsistencyScore float64 `json:"consistency_score"`

	// CheckedTurns is the number of prior turns comparable to the
	// statement.
	CheckedTurns int `json:"checked_turns"`

	// Related lists the prior turns retrieved for the check, with their
	// semantic similarity in Score.
	Related []*MemoryRecord `json:"related"`

	// Warnings lists the contradictions found.
	Warnings []InconsistencyWarning `json:"warnings"`
}

// TruncationResult reports what TruncateLowValueMemories removed.
type TruncationResult struct {
	// RemovedIDs lists the deleted record IDs.
	RemovedIDs []int64 `json:"removed_ids"`

	// TokensSaved estimates the context tokens freed.
	TokensSaved int `json:"tokens_saved"`
}

// DuplicatePair is one resolved duplicate: the older member was removed in
// favor of the newer one.
type DuplicatePair struct {
	// RemovedID is the deleted older record.
	RemovedID int64 `json:"removed_id"`

	// KeptID is the newer record that survives the pair.
	KeptID int64 `json:"kept_id"`
}

// DeduplicationResult reports what DeduplicateMemories removed.
type DeduplicationResult struct {
	// RemovedIDs lists the deleted record IDs.
	RemovedIDs []int64 `json:"removed_ids"`

	// DuplicatePairs lists each removal with the record it duplicated.
	DuplicatePairs []DuplicatePair `json:"duplicate_pairs"`

	// TokensSaved estimates the context tokens freed.
	TokensSaved int `json:"tokens_saved"`
}

// CompressionResult reports what CompressOldMemories rewrote.
type CompressionResult struct {
	// CompressedCount is the number of records replaced by their
	// extractive summaries.
	CompressedCount int `json:"compressed_count"`

	// OriginalTokens estimates the token cost of the replaced texts.
	OriginalTokens int `json:"original_tokens"`

	// CompressedTokens estimates the token cost of the summaries.
	CompressedTokens int `json:"compressed_tokens"`
}

// TokensSaved is the estimated context tokens freed by compression.
func (r *CompressionResult) TokensSaved() int {
	return r.OriginalTokens - r.CompressedTokens
}

// MemorySummary is a diagnostic snapshot of a session's memory state.
type MemorySummary struct {
	// SessionID is the session described.
	SessionID string `json:"session_id"`

	// ShortTermCount is the number of turns in the window.
	ShortTermCount int `json:"short_term_count"`

	// ShortTermCapacity is the window capacity.
	ShortTermCapacity int `json:"short_term_capacity"`

	// LongTermCount is the number of indexed records in the session.
	LongTermCount int `json:"long_term_count"`
}

// Lifecycle operation names for Optimize.
const (
	// OpTruncate removes low-value records.
	OpTruncate = "truncate"

	// OpDeduplicate removes near-duplicate records.
	OpDeduplicate = "deduplicate"

	// OpCompress rewrites old records with extractive summaries.
	OpCompress = "compress"
)

// EstimateTokens approximates the token cost of text. The estimate is
// length-monotonic: longer text never estimates lower.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
