// Package lexical provides keyword-overlap scoring for hybrid retrieval.
//
// Lexical scores complement embedding similarity: exact terminology matches
// (named entities, numbers, cited sources) that embeddings smooth over still
// surface through the lexical channel.
package lexical

import "context"

// Document is one retrieval candidate to score against a query.
type Document struct {
	// ID identifies the candidate. Scores map back to candidates by
	// position, but backends also use the ID as the index key.
	ID string

	// Text is the candidate content.
	Text string
}

// Scorer computes lexical relevance scores for a candidate set.
type Scorer interface {
	// Score returns one score per document, aligned with docs by index.
	// Documents with no lexical overlap score zero. Scores are raw
	// (backend-specific scale); callers normalize per candidate set.
	Score(ctx context.Context, query string, docs []Document) ([]float64, error)
}
