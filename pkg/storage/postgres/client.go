// Package postgres provides a PostgreSQL + pgvector implementation of the
// vector index. Similarity search runs inside the database using pgvector's
// cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// Client is a PostgreSQL + pgvector vector index client.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	TableName     string
	EmbeddingDims int
	SSLMode       string
}

// NewClient creates a new PostgreSQL client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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

// initTables initializes the pgvector extension and table structure.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			role VARCHAR(64) NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			turn_index INTEGER NOT NULL,
			topic VARCHAR(255),
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.tableName, c.dimensions)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_session_role ON %s(session_id, role)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Insert inserts a record.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	if c.dimensions > 0 && len(rec.Embedding) != c.dimensions {
		return fmt.Errorf("Insert: embedding dimension mismatch (got %d, want %d)", len(rec.Embedding), c.dimensions)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, session_id, role, text, embedding, turn_index, topic, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.tableName)

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
		vectorToString(rec.Embedding),
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

// Query performs vector search using pgvector's cosine distance operator.
func (c *Client) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.QueryOptions{}
	}

	queryVectorStr := vectorToString(embedding)

	// $1 is the query vector, filter placeholders start at $2.
	whereClause, filterArgs, err := buildWhereClauseWithOffset(opts.SessionID, opts.Role, opts.Filters, 2)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			id, session_id, role, text, embedding, turn_index, topic, metadata, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, c.tableName, whereClause, len(filterArgs)+2)

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	allArgs := []interface{}{queryVectorStr}
	allArgs = append(allArgs, filterArgs...)
	allArgs = append(allArgs, limit)

	rows, err := c.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows, true)
		if err != nil {
			return nil, err
		}
		if rec.Score >= opts.MinScore {
			records = append(records, rec)
		}
	}

	return records, rows.Err()
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, role, text, embedding, turn_index, topic, metadata, created_at
		FROM %s
		WHERE id = $1
	`, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, storage.ErrRecordNotFound
	}

	rec, err := scanRecord(rows, false)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return rec, nil
}

// Delete deletes a record by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.tableName)

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

	whereClause, args, err := buildWhereClauseWithOffset(opts.SessionID, opts.Role, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, session_id, role, text, embedding, turn_index, topic, metadata, created_at
		FROM %s
		%s
		ORDER BY turn_index ASC
	`, c.tableName, whereClause)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteAll deletes all records matching the filter.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	var sessionID string
	if opts != nil {
		sessionID = opts.SessionID
	}

	whereClause, args, err := buildWhereClauseWithOffset(sessionID, "", nil, 1)
	if err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}

	query := fmt.Sprintf("DELETE FROM %s %s", c.tableName, whereClause)

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}

	return nil
}

// Count returns the number of records in the session scope.
func (c *Client) Count(ctx context.Context, sessionID string) (int, error) {
	whereClause, args, err := buildWhereClauseWithOffset(sessionID, "", nil, 1)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}

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
