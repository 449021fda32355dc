// Package intelligence provides memory lifecycle features: value scoring,
// deduplication, compression, and consistency checking over stored turns.
package intelligence

import (
	"context"
	"math"
	"sort"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// PairwiseCutoff is the record count above which callers should prefer
// PlanNeighbors over the quadratic Plan.
const PairwiseCutoff = 256

// DuplicatePair records one planned removal: the older member goes, the
// newer member stays.
type DuplicatePair struct {
	// RemovedID is the older member of the pair.
	RemovedID int64

	// KeptID is the newer member that survives.
	KeptID int64
}

// Deduplicator detects near-duplicate turns within a session by embedding
// similarity.
//
// Example usage:
//
//	dedup := NewDeduplicator(0.95)
//	for _, pair := range dedup.Plan(records) {
//	    index.Delete(ctx, pair.RemovedID)
//	}
type Deduplicator struct {
	// threshold is the similarity at or above which two turns are
	// considered duplicates. Typical range: 0.9-0.98.
	threshold float64
}

// NewDeduplicator creates a deduplicator. A zero threshold defaults to 0.95.
func NewDeduplicator(threshold float64) *Deduplicator {
	if threshold == 0 {
		threshold = 0.95
	}
	return &Deduplicator{threshold: threshold}
}

// Plan returns the duplicate pairs to resolve so that no surviving pair has
// similarity at or above the threshold.
//
// Records are compared oldest-first and the older member of each duplicate
// pair is removed, so the most recent phrasing of repeated content survives.
// A pair never loses both members.
func (d *Deduplicator) Plan(records []*storage.Record) []DuplicatePair {
	if len(records) < 2 {
		return nil
	}

	sorted := make([]*storage.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TurnIndex < sorted[j].TurnIndex
	})

	removed := make(map[int64]bool)
	var pairs []DuplicatePair

	for i := 0; i < len(sorted); i++ {
		if removed[sorted[i].ID] {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			if removed[sorted[j].ID] {
				continue
			}
			if CosineSimilarity(sorted[i].Embedding, sorted[j].Embedding) >= d.threshold {
				removed[sorted[i].ID] = true
				pairs = append(pairs, DuplicatePair{RemovedID: sorted[i].ID, KeptID: sorted[j].ID})
				break
			}
		}
	}

	return pairs
}

// PlanNeighbors is Plan for large sessions: duplicate candidates come from
// the index's nearest-neighbor search instead of exhaustive pairwise
// comparison, so cost scales with the neighbor fan-out rather than the
// session size.
//
// Semantics match Plan: the older member of each duplicate pair is removed
// and a pair never loses both members.
func (d *Deduplicator) PlanNeighbors(ctx context.Context, index storage.VectorIndex, sessionID string, records []*storage.Record) ([]DuplicatePair, error) {
	if len(records) < 2 {
		return nil, nil
	}

	sorted := make([]*storage.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TurnIndex < sorted[j].TurnIndex
	})

	removed := make(map[int64]bool)
	var pairs []DuplicatePair

	for _, rec := range sorted {
		if removed[rec.ID] {
			continue
		}

		hits, err := index.Query(ctx, rec.Embedding, &storage.QueryOptions{
			SessionID: sessionID,
			Limit:     8,
			MinScore:  d.threshold,
		})
		if err != nil {
			return pairs, err
		}

		for _, hit := range hits {
			if hit.ID == rec.ID || removed[hit.ID] {
				continue
			}
			// A newer duplicate exists, so this older record goes.
			if hit.TurnIndex > rec.TurnIndex {
				removed[rec.ID] = true
				pairs = append(pairs, DuplicatePair{RemovedID: rec.ID, KeptID: hit.ID})
				break
			}
		}
	}

	return pairs, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
//
// The result ranges from -1 (opposite) to 1 (identical). Vectors with
// mismatched dimensions or zero norm score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
