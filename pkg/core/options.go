// Package core provides the debatemem Manager and memory orchestration.
package core

// AddOption is a function type for configuring AddInteraction operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type AddOption func(*AddOptions)

// AddOptions contains configuration options for AddInteraction operations.
type AddOptions struct {
	// Topic tags the turn with a debate topic.
	Topic string

	// Metadata contains additional metadata about the turn.
	Metadata map[string]interface{}

	// ShortTermOnly skips long-term indexing. The turn stays in the
	// window until evicted.
	ShortTermOnly bool
}

// WithTopic tags the turn with a topic for AddInteraction operations.
//
// Example:
//
//	id, _ := mgr.AddInteraction(ctx, core.RoleProponent, "text", core.WithTopic("energy"))
func WithTopic(topic string) AddOption {
	return func(opts *AddOptions) {
		opts.Topic = topic
	}
}

// WithMetadata sets metadata for AddInteraction operations.
//
// Metadata can be used for filtering in later searches.
//
// Example:
//
//	id, _ := mgr.AddInteraction(ctx, core.RoleProponent, "text",
//	    core.WithMetadata(map[string]interface{}{
//	        "round": 2,
//	    }),
//	)
func WithMetadata(metadata map[string]interface{}) AddOption {
	return func(opts *AddOptions) {
		opts.Metadata = metadata
	}
}

// WithShortTermOnly keeps the turn out of the long-term index.
//
// Example:
//
//	id, _ := mgr.AddInteraction(ctx, core.RoleSystem, "timer notice", core.WithShortTermOnly())
func WithShortTermOnly() AddOption {
	return func(opts *AddOptions) {
		opts.ShortTermOnly = true
	}
}

// SearchOption is a function type for configuring SearchMemories operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for SearchMemories
// operations. Unset fields fall back to the Manager's retrieval defaults.
type SearchOptions struct {
	// Role restricts results to one debate role.
	Role string

	// TopK sets the maximum number of results.
	TopK int

	// Weight is the fusion weight: 1.0 pure semantic, 0.0 pure lexical.
	Weight float64

	// Threshold drops results whose fused score falls below it.
	Threshold float64

	// Rerank enables the LLM re-ranker for this search.
	Rerank bool

	// CrossSession searches across all sessions instead of this
	// Manager's session. Explicit opt-in.
	CrossSession bool

	// Filters provides additional metadata filters.
	Filters map[string]interface{}

	topKSet      bool
	weightSet    bool
	thresholdSet bool
}

// WithRoleFilter restricts search results to one debate role.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithRoleFilter(core.RoleOpponent))
func WithRoleFilter(role string) SearchOption {
	return func(opts *SearchOptions) {
		opts.Role = role
	}
}

// WithTopK sets the maximum number of results for SearchMemories.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithTopK(10))
func WithTopK(topK int) SearchOption {
	return func(opts *SearchOptions) {
		opts.TopK = topK
		opts.topKSet = true
	}
}

// WithWeight sets the fusion weight for SearchMemories. 0.0 is valid and
// means pure lexical ranking.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithWeight(1.0))
func WithWeight(weight float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.Weight = weight
		opts.weightSet = true
	}
}

// WithThreshold sets the minimum fused score for SearchMemories.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithThreshold(0.3))
func WithThreshold(threshold float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.Threshold = threshold
		opts.thresholdSet = true
	}
}

// WithRerank enables the LLM re-ranker for this search. Requires an LLM
// provider in the Manager configuration; otherwise it is a logged no-op.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithRerank())
func WithRerank() SearchOption {
	return func(opts *SearchOptions) {
		opts.Rerank = true
	}
}

// WithCrossSession searches across all sessions. Session isolation is the
// default; this is the explicit opt-out.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query", core.WithCrossSession())
func WithCrossSession() SearchOption {
	return func(opts *SearchOptions) {
		opts.CrossSession = true
	}
}

// WithFilters sets metadata filters for SearchMemories operations.
//
// Example:
//
//	results, _ := mgr.SearchMemories(ctx, "query",
//	    core.WithFilters(map[string]interface{}{
//	        "round": 2,
//	    }),
//	)
func WithFilters(filters map[string]interface{}) SearchOption {
	return func(opts *SearchOptions) {
		opts.Filters = filters
	}
}

// ContextOption is a function type for configuring BuildContextPayload
// operations.
type ContextOption func(*ContextOptions)

// ContextOptions contains configuration options for context assembly.
type ContextOptions struct {
	// SystemText overrides the default system zone content.
	SystemText string

	// EvidenceTopK bounds the evidence zone. Defaults to the retrieval
	// default top-k.
	EvidenceTopK int

	// EvidenceQuery overrides the retrieval query for the evidence zone.
	// Defaults to the task text.
	EvidenceQuery string

	// SkipEvidence opts the evidence zone out; the zone is still present
	// with a not-requested marker.
	SkipEvidence bool

	// SkipRecent opts the short-term window out; the zone is still
	// present with a not-requested marker.
	SkipRecent bool

	// MaxReversalTurns bounds the prior-commitments zone in role
	// reversal payloads. Defaults to 20.
	MaxReversalTurns int
}

// WithSystemText overrides the system zone content.
func WithSystemText(text string) ContextOption {
	return func(opts *ContextOptions) {
		opts.SystemText = text
	}
}

// WithEvidenceTopK bounds the evidence zone.
func WithEvidenceTopK(topK int) ContextOption {
	return func(opts *ContextOptions) {
		opts.EvidenceTopK = topK
	}
}

// WithEvidenceQuery retrieves evidence with its own query instead of the
// task text. Useful when the task is an instruction rather than a question.
func WithEvidenceQuery(query string) ContextOption {
	return func(opts *ContextOptions) {
		opts.EvidenceQuery = query
	}
}

// WithoutEvidence opts the evidence zone out of the payload.
func WithoutEvidence() ContextOption {
	return func(opts *ContextOptions) {
		opts.SkipEvidence = true
	}
}

// WithoutRecent opts the short-term window out of the payload.
func WithoutRecent() ContextOption {
	return func(opts *ContextOptions) {
		opts.SkipRecent = true
	}
}

// WithMaxReversalTurns bounds the prior-commitments zone.
func WithMaxReversalTurns(n int) ContextOption {
	return func(opts *ContextOptions) {
		opts.MaxReversalTurns = n
	}
}

// applyAddOptions applies Add options to create AddOptions.
func applyAddOptions(opts []AddOption) *AddOptions {
	options := &AddOptions{
		Metadata: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applySearchOptions merges per-search options over the Manager's retrieval
// defaults.
func (m *Manager) applySearchOptions(opts []SearchOption) *SearchOptions {
	options := &SearchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if !options.topKSet {
		options.TopK = m.config.Retrieval.TopK
	}
	if !options.weightSet {
		options.Weight = m.config.Retrieval.Weight
	}
	if !options.thresholdSet {
		options.Threshold = m.config.Retrieval.Threshold
	}

	return options
}

// applyContextOptions applies context options with defaults.
func (m *Manager) applyContextOptions(opts []ContextOption) *ContextOptions {
	options := &ContextOptions{
		EvidenceTopK:     m.config.Retrieval.TopK,
		MaxReversalTurns: 20,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
