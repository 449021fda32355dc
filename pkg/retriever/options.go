package retriever

// SearchOptions contains per-search parameters. Unset fields fall back to
// the Retriever's configured defaults.
type SearchOptions struct {
	// SessionID scopes the search to one session.
	SessionID string

	// Role restricts candidates to one debate role when non-empty.
	Role string

	// TopK is the maximum number of results.
	TopK int

	// Weight is the fusion weight: 1.0 is pure semantic, 0.0 is pure
	// lexical.
	Weight float64

	// Threshold drops results whose fused score falls below it.
	Threshold float64

	// Rerank enables the configured reranker for this search.
	Rerank bool

	// Filters provides additional metadata equality filters.
	Filters map[string]interface{}

	weightSet    bool
	thresholdSet bool
	topKSet      bool
}

// SearchOption configures a single search.
type SearchOption func(*SearchOptions)

// WithSessionID scopes the search to one session.
func WithSessionID(sessionID string) SearchOption {
	return func(o *SearchOptions) {
		o.SessionID = sessionID
	}
}

// WithRole restricts candidates to one debate role.
func WithRole(role string) SearchOption {
	return func(o *SearchOptions) {
		o.Role = role
	}
}

// WithTopK sets the maximum number of results.
func WithTopK(topK int) SearchOption {
	return func(o *SearchOptions) {
		o.TopK = topK
		o.topKSet = true
	}
}

// WithWeight sets the fusion weight for this search. 0.0 is valid and means
// pure lexical ranking.
func WithWeight(weight float64) SearchOption {
	return func(o *SearchOptions) {
		o.Weight = weight
		o.weightSet = true
	}
}

// WithThreshold sets the minimum fused score for this search.
func WithThreshold(threshold float64) SearchOption {
	return func(o *SearchOptions) {
		o.Threshold = threshold
		o.thresholdSet = true
	}
}

// WithRerank enables reranking for this search.
func WithRerank() SearchOption {
	return func(o *SearchOptions) {
		o.Rerank = true
	}
}

// WithFilters adds metadata equality filters.
func WithFilters(filters map[string]interface{}) SearchOption {
	return func(o *SearchOptions) {
		o.Filters = filters
	}
}

// applySearchOptions merges per-search options over the retriever defaults.
func (r *Retriever) applySearchOptions(opts []SearchOption) *SearchOptions {
	options := &SearchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if !options.weightSet {
		options.Weight = r.weight
	}
	if !options.thresholdSet {
		options.Threshold = r.threshold
	}
	if !options.topKSet {
		options.TopK = r.topK
	}

	return options
}
