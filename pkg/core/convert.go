// Package core provides the debatemem Manager and memory orchestration.
package core

import (
	"github.com/agoralabs/debatemem/pkg/retriever"
	"github.com/agoralabs/debatemem/pkg/storage"
)

// fromStorageRecord converts a storage.Record to core.MemoryRecord.
//
// This function is used internally to convert between package types
// to avoid circular dependencies.
func fromStorageRecord(r *storage.Record) *MemoryRecord {
	return &MemoryRecord{
		ID:        r.ID,
		SessionID: r.SessionID,
		Role:      r.Role,
		Text:      r.Text,
		Embedding: r.Embedding,
		TurnIndex: r.TurnIndex,
		Topic:     r.Topic,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
		Score:     r.Score,
	}
}

// fromRetrieverResult converts a retriever.Result to core.RetrievalResult.
func fromRetrieverResult(res *retriever.Result) *RetrievalResult {
	return &RetrievalResult{
		Record: &MemoryRecord{
			ID:        res.ID,
			SessionID: res.SessionID,
			Role:      res.Role,
			Text:      res.Text,
			TurnIndex: res.TurnIndex,
			Topic:     res.Topic,
			Metadata:  res.Metadata,
			CreatedAt: res.CreatedAt,
			Score:     res.Score,
		},
		Score:         res.Score,
		SemanticScore: res.SemanticScore,
		LexicalScore:  res.LexicalScore,
		Rank:          res.Rank,
	}
}
