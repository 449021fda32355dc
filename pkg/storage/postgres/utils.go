package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// vectorToString converts a float slice to pgvector text format: [1,2,3].
func vectorToString(vector []float64) string {
	strValues := make([]string, len(vector))
	for i, v := range vector {
		strValues[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(strValues, ",") + "]"
}

// stringToVector parses pgvector text format back into a float slice.
func stringToVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vector := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		vector[i] = v
	}
	return vector, nil
}

// buildWhereClauseWithOffset builds a WHERE clause with numbered placeholders
// starting at startIdx. Metadata filters use JSONB containment so nested
// values compare by structure rather than string form.
func buildWhereClauseWithOffset(sessionID, role string, filters map[string]interface{}, startIdx int) (string, []interface{}, error) {
	conditions := []string{}
	args := []interface{}{}
	idx := startIdx

	if sessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", idx))
		args = append(args, sessionID)
		idx++
	}

	if role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", idx))
		args = append(args, role)
		idx++
	}

	if len(filters) > 0 {
		filterJSON, err := json.Marshal(filters)
		if err != nil {
			return "", nil, fmt.Errorf("marshal filters: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("metadata @> $%d::jsonb", idx))
		args = append(args, string(filterJSON))
	}

	if len(conditions) == 0 {
		return "", args, nil
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

// scanRecord scans a record from the result set. When withSimilarity is true
// the row is expected to carry a trailing similarity column.
func scanRecord(rows *sql.Rows, withSimilarity bool) (*storage.Record, error) {
	var rec storage.Record
	var embeddingStr string
	var metadataStr sql.NullString
	var topic sql.NullString

	var err error
	if withSimilarity {
		err = rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Text, &embeddingStr,
			&rec.TurnIndex, &topic, &metadataStr, &rec.CreatedAt, &rec.Score)
	} else {
		err = rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Text, &embeddingStr,
			&rec.TurnIndex, &topic, &metadataStr, &rec.CreatedAt)
	}
	if err != nil {
		return nil, err
	}

	rec.Embedding, err = stringToVector(embeddingStr)
	if err != nil {
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
