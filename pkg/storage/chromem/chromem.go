// Package chromem provides an embedded, pure-Go implementation of the vector
// index backed by chromem-go. It requires no external database process, which
// makes it the default backend for local use and tests.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// Client implements storage.VectorIndex using chromem-go.
//
// chromem-go documents carry only string metadata, so the full record is kept
// in an in-process map alongside the collection. The collection answers
// similarity queries; the map answers Get, List, and metadata filters.
type Client struct {
	mu         sync.RWMutex
	db         *chromemgo.DB
	collection *chromemgo.Collection
	records    map[int64]*storage.Record
	dimensions int
}

// Config contains chromem configuration.
type Config struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path string

	// Collection is the collection name.
	Collection string

	// EmbeddingDims is the dimension of embedding vectors.
	EmbeddingDims int
}

// NewClient creates a new chromem vector index client.
func NewClient(cfg *Config) (*Client, error) {
	var db *chromemgo.DB
	var err error

	if cfg.Path != "" {
		db, err = chromemgo.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("NewChromemClient: %w", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = "debate_turns"
	}

	// Embeddings are always supplied by the caller, so no embedding
	// function is configured on the collection.
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("NewChromemClient: %w", err)
	}

	return &Client{
		db:         db,
		collection: col,
		records:    make(map[int64]*storage.Record),
		dimensions: cfg.EmbeddingDims,
	}, nil
}

// Insert inserts a record.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	if c.dimensions > 0 && len(rec.Embedding) != c.dimensions {
		return fmt.Errorf("Insert: embedding dimension mismatch (got %d, want %d)", len(rec.Embedding), c.dimensions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc := chromemgo.Document{
		ID: strconv.FormatInt(rec.ID, 10),
		Metadata: map[string]string{
			"session_id": rec.SessionID,
			"role":       rec.Role,
		},
		Embedding: toFloat32(rec.Embedding),
		Content:   rec.Text,
	}

	if err := c.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	stored := *rec
	c.records[rec.ID] = &stored

	return nil
}

// Query performs nearest-neighbor search via the chromem collection.
func (c *Client) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.QueryOptions{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	where := map[string]string{}
	if opts.SessionID != "" {
		where["session_id"] = opts.SessionID
	}
	if opts.Role != "" {
		where["role"] = opts.Role
	}
	if len(where) == 0 {
		where = nil
	}

	// chromem rejects nResults larger than the filtered document count, so
	// compute the exact match count from the record map and rank them all.
	total := 0
	for _, rec := range c.records {
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Role != "" && rec.Role != opts.Role {
			continue
		}
		total++
	}
	if total == 0 {
		return nil, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, toFloat32(embedding), total, where, nil)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	var records []*storage.Record
	for _, res := range results {
		id, err := strconv.ParseInt(res.ID, 10, 64)
		if err != nil {
			continue
		}
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		if !matchesFilters(rec.Metadata, opts.Filters) {
			continue
		}

		out := *rec
		out.Score = float64(res.Similarity)
		if out.Score >= opts.MinScore {
			records = append(records, &out)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}

	out := *rec
	return &out, nil
}

// Delete deletes a record by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return storage.ErrRecordNotFound
	}

	if err := c.collection.Delete(ctx, nil, nil, strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	delete(c.records, id)

	return nil
}

// List retrieves records ordered by turn index ascending.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []*storage.Record
	for _, rec := range c.records {
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Role != "" && rec.Role != opts.Role {
			continue
		}
		out := *rec
		records = append(records, &out)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TurnIndex < records[j].TurnIndex
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(records) {
			return nil, nil
		}
		records = records[opts.Offset:]
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}

// DeleteAll deletes all records matching the filter.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sessionID string
	if opts != nil {
		sessionID = opts.SessionID
	}

	var ids []string
	for id, rec := range c.records {
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		ids = append(ids, strconv.FormatInt(id, 10))
		delete(c.records, id)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}

	return nil
}

// Count returns the number of records in the session scope.
func (c *Client) Count(ctx context.Context, sessionID string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sessionID == "" {
		return len(c.records), nil
	}

	count := 0
	for _, rec := range c.records {
		if rec.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

// Close releases resources. chromem-go holds no connections, so this only
// drops the in-process record map.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[int64]*storage.Record)
	return nil
}

// toFloat32 converts embeddings to chromem's native element type.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// matchesFilters reports whether the record metadata satisfies all equality
// filters, compared by string form.
func matchesFilters(metadata, filters map[string]interface{}) bool {
	if len(filters) == 0 {
		return true
	}
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
