package sqlite

import (
	"fmt"
	"math"
	"strings"
)

// buildWhereClause builds a WHERE clause for session and role filters.
func buildWhereClause(sessionID, role string) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if sessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, sessionID)
	}

	if role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, role)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// matchesFilters reports whether the record metadata satisfies all equality
// filters. Values are compared by their string form since metadata round-trips
// through JSON.
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

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
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
