// Package sqlite provides a SQLite implementation of the vector index.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small-scale deployments. Embeddings are stored as JSON strings in TEXT
// fields, and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// Client implements storage.VectorIndex using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string

	// dimensions is the dimension of embedding vectors.
	dimensions int
}

// Config contains configuration for creating a SQLite vector index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use.
	TableName string

	// EmbeddingDims is the dimension of embedding vectors.
	EmbeddingDims int
}

// NewClient creates a new SQLite vector index client.
//
// Parameters:
//   - cfg: Configuration containing database path, table name, and embedding dimensions
//
// Returns the client instance, or an error if database connection or table
// creation fails.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:         db,
		tableName:  cfg.TableName,
		dimensions: cfg.EmbeddingDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
//
// SQLite stores embeddings as JSON strings in TEXT fields.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			topic TEXT,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_session_role ON %s(session_id, role)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a record into the SQLite database.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	if c.dimensions > 0 && len(rec.Embedding) != c.dimensions {
		return fmt.Errorf("Insert: embedding dimension mismatch (got %d, want %d)", len(rec.Embedding), c.dimensions)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, session_id, role, text, embedding, turn_index, topic, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Role,
		rec.Text,
		string(embeddingJSON),
		rec.TurnIndex,
		rec.Topic,
		string(metadataJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Query performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading all records matching the session/role filter.
// Metadata filters are applied in Go for the same reason.
func (c *Client) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.QueryOptions{}
	}

	whereClause, args := buildWhereClause(opts.SessionID, opts.Role)

	query := fmt.Sprintf(`
		SELECT id, session_id, role, text, embedding, turn_index, topic, metadata, created_at
		FROM %s
		%s
		ORDER BY id
	`, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		if !matchesFilters(rec.Metadata, opts.Filters) {
			continue
		}

		score := cosineSimilarity(embedding, rec.Embedding)
		rec.Score = score

		if score >= opts.MinScore {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
	query := fmt.Sprintf(`
		SELECT id, session_id, role, text, embedding, turn_index, topic, metadata, created_at
		FROM %s
		WHERE id = ?
	`, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return rec, nil
}

// Delete deletes a record by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrRecordNotFound
	}

	return nil
}

// List retrieves records ordered by turn index ascending.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	whereClause, args := buildWhereClause(opts.SessionID, opts.Role)

	query := fmt.Sprintf(`
		SELECT id, session_id, role, text, embedding, turn_index, topic, metadata, created_at
		FROM %s
		%s
		ORDER BY turn_index ASC
	`, c.tableName, whereClause)

	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteAll deletes all records matching the filter.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	var whereClause string
	var args []interface{}
	if opts != nil && opts.SessionID != "" {
		whereClause, args = buildWhereClause(opts.SessionID, "")
	}

	query := fmt.Sprintf("DELETE FROM %s %s", c.tableName, whereClause)

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}

	return nil
}

// Count returns the number of records in the session scope.
func (c *Client) Count(ctx context.Context, sessionID string) (int, error) {
	whereClause, args := buildWhereClause(sessionID, "")

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", c.tableName, whereClause)

	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}

	return count, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanRecord scans a record from a database row or rows.
func scanRecord(scanner interface{}) (*storage.Record, error) {
	var rec storage.Record
	var embeddingStr string
	var metadataStr sql.NullString
	var topic sql.NullString

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Text, &embeddingStr,
			&rec.TurnIndex, &topic, &metadataStr, &rec.CreatedAt)
	case *sql.Rows:
		err = s.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Text, &embeddingStr,
			&rec.TurnIndex, &topic, &metadataStr, &rec.CreatedAt)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &rec.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if topic.Valid {
		rec.Topic = topic.String
	}

	return &rec, nil
}
