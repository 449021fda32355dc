// Package mysql provides a MySQL implementation of the vector index.
//
// MySQL has no native vector type in the versions this package targets, so
// embeddings are stored as JSON strings and similarity is calculated in
// memory after loading the session/role candidate set.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// Client implements storage.VectorIndex using MySQL as the backend.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains MySQL configuration.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	TableName     string
	EmbeddingDims int
}

// NewClient creates a new MySQL vector index client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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

// initTables initializes the table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			role VARCHAR(64) NOT NULL,
			text TEXT NOT NULL,
			embedding LONGTEXT NOT NULL,
			turn_index INT NOT NULL,
			topic VARCHAR(255),
			metadata JSON,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_session_role (session_id, role)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
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

// Query performs vector similarity search using in-memory cosine similarity.
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

		rec.Score = cosineSimilarity(embedding, rec.Embedding)

		if rec.Score >= opts.MinScore {
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

	rows, err := c.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, storage.ErrRecordNotFound
	}

	rec, err := scanRecord(rows)
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

// scanRecord scans a record from the result set.
func scanRecord(rows *sql.Rows) (*storage.Record, error) {
	var rec storage.Record
	var embeddingStr string
	var metadataStr sql.NullString
	var topic sql.NullString

	err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Text, &embeddingStr,
		&rec.TurnIndex, &topic, &metadataStr, &rec.CreatedAt)
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
