package lexical

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveScorer scores candidates with BM25 over an in-memory bleve index.
//
// The index is built per call over just the candidate set. Candidate sets
// are small (an over-fetched top-k), so indexing cost stays negligible and
// the scorer needs no persistent state or invalidation logic.
type BleveScorer struct{}

// NewBleveScorer creates a bleve-backed lexical scorer.
func NewBleveScorer() *BleveScorer {
	return &BleveScorer{}
}

// indexedDoc is the shape bleve indexes for each candidate.
type indexedDoc struct {
	Text string `json:"text"`
}

// buildIndexMapping creates the bleve index mapping for candidate text.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Score indexes the candidate set and runs a match query against it.
//
// Returned scores are raw BM25 values aligned with docs by position; a
// document bleve does not hit scores zero.
func (s *BleveScorer) Score(ctx context.Context, query string, docs []Document) ([]float64, error) {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || query == "" {
		return scores, nil
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("lexical: create index: %w", err)
	}
	defer func() { _ = index.Close() }()

	batch := index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, indexedDoc{Text: doc.Text}); err != nil {
			return nil, fmt.Errorf("lexical: index candidate %s: %w", doc.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("lexical: index batch: %w", err)
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")

	searchReq := bleve.NewSearchRequest(matchQuery)
	searchReq.Size = len(docs)

	searchResult, err := index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("lexical: search: %w", err)
	}

	byID := make(map[string]float64, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		byID[hit.ID] = hit.Score
	}

	for i, doc := range docs {
		scores[i] = byID[doc.ID]
	}

	return scores, nil
}
