// Package mock provides a deterministic embedding provider for tests and
// offline development. No network calls are made.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder produces deterministic embeddings by hashing each token into a
// fixed-size bag-of-words vector. Texts sharing words produce vectors with
// nonzero cosine similarity, so ranking behavior is meaningful in tests.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the given dimensionality.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &Embedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding for the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimensions)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		idx := int(h.Sum32()) % e.dimensions
		if idx < 0 {
			idx += e.dimensions
		}
		vec[idx] += 1.0
	}

	// L2 normalize so cosine similarity equals the dot product.
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
