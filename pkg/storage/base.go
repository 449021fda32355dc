// Package storage provides interfaces and types for vector index backends.
//
// It defines the VectorIndex interface that all backends must satisfy, along
// with the stored record type and query options. The index is a shared
// resource across debate sessions; isolation is enforced by the session
// filter on every query, never by backend-global state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound indicates that the requested record does not exist in
// the index (or was already deleted).
var ErrRecordNotFound = errors.New("record not found")

// Record represents one stored debate turn in the vector index.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.MemoryRecord structure.
type Record struct {
	// ID is the unique identifier of the record.
	ID int64

	// SessionID groups records into one conversation/debate.
	SessionID string

	// Role is the debate role that produced the turn
	// (proponent, opponent, moderator, system).
	Role string

	// Text is the raw turn content. Immutable once stored.
	Text string

	// Embedding is the vector embedding for similarity search,
	// computed once at insertion.
	Embedding []float64

	// TurnIndex is the monotonic position of the turn within its session.
	TurnIndex int

	// Topic is an optional debate topic tag.
	Topic string

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// Score is the similarity score populated by Query operations.
	Score float64
}

// VectorIndex defines the interface for vector index backends.
//
// All backends (SQLite, PostgreSQL, MySQL, chromem) must implement this
// interface. Implementations must be safe for concurrent use from multiple
// sessions; the engine never assumes a single writer.
type VectorIndex interface {
	// Insert inserts a record into the index.
	//
	// Backends with a fixed embedding dimensionality must reject records
	// whose embedding length differs from the configured dimension.
	Insert(ctx context.Context, rec *Record) error

	// Query performs nearest-neighbor search by embedding.
	//
	// Results are sorted by similarity (highest first) with Score
	// populated as cosine similarity. Filters in opts restrict the
	// candidate set before ranking. An empty index yields an empty
	// result, not an error.
	Query(ctx context.Context, embedding []float64, opts *QueryOptions) ([]*Record, error)

	// Get retrieves a record by ID.
	Get(ctx context.Context, id int64) (*Record, error)

	// Delete deletes a record by ID. Deleting a record that is already
	// gone returns ErrRecordNotFound so callers can treat it as a no-op.
	Delete(ctx context.Context, id int64) error

	// List retrieves records matching the filter, ordered by turn index
	// ascending. It does not rank by similarity.
	List(ctx context.Context, opts *ListOptions) ([]*Record, error)

	// DeleteAll deletes all records matching the filter.
	DeleteAll(ctx context.Context, opts *DeleteAllOptions) error

	// Count returns the number of records in the given session scope
	// (all sessions when sessionID is empty).
	Count(ctx context.Context, sessionID string) (int, error)

	// Close closes the index and releases resources.
	Close() error
}

// QueryOptions contains options for nearest-neighbor queries.
type QueryOptions struct {
	// SessionID scopes the query to one session. Empty means
	// cross-session search, which callers must opt into explicitly.
	SessionID string

	// Role restricts candidates to one debate role when non-empty.
	Role string

	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore drops candidates with similarity below this value.
	MinScore float64

	// Filters provides additional metadata equality filters.
	Filters map[string]interface{}
}

// ListOptions contains options for List operations.
type ListOptions struct {
	// SessionID scopes the listing to one session. Empty means all.
	SessionID string

	// Role restricts results to one debate role when non-empty.
	Role string

	// Limit sets the maximum number of results (0 = no limit).
	Limit int

	// Offset sets the number of results to skip.
	Offset int
}

// DeleteAllOptions contains options for DeleteAll operations.
type DeleteAllOptions struct {
	// SessionID scopes the deletion to one session. Empty deletes
	// everything (use with caution).
	SessionID string
}
