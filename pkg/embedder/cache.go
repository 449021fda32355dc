package embedder

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// Cached wraps a Provider with a ristretto cache keyed by input text.
//
// Retrieval embeds the query on every search; caching collapses repeated
// queries (and repeated lexical probes of the same turn text) into a single
// upstream call. Entries are admitted by ristretto's TinyLFU policy, so a
// cold or hostile key mix degrades to plain pass-through rather than
// evicting hot entries.
type Cached struct {
	provider Provider
	cache    *ristretto.Cache
}

// CacheConfig tunes the embedding cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached embeddings. Defaults to 4096.
	MaxEntries int64
}

// NewCached wraps provider with an embedding cache.
func NewCached(provider Provider, cfg *CacheConfig) (*Cached, error) {
	maxEntries := int64(4096)
	if cfg != nil && cfg.MaxEntries > 0 {
		maxEntries = cfg.MaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		provider: provider,
		cache:    cache,
	}, nil
}

// Embed returns a cached embedding when available, otherwise delegates to
// the wrapped provider and caches the result.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if cached, ok := c.cache.Get(text); ok {
		if vec, ok := cached.([]float64); ok {
			return vec, nil
		}
	}

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, vec, 1)
	return vec, nil
}

// EmbedBatch serves cache hits locally and batches the misses upstream.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			if vec, ok := cached.([]float64); ok {
				out[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range vecs {
		out[missIdx[j]] = vec
		c.cache.Set(missTexts[j], vec, 1)
	}

	return out, nil
}

// Dimensions returns the wrapped provider's dimensionality.
func (c *Cached) Dimensions() int {
	return c.provider.Dimensions()
}

// Close releases the cache and closes the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.provider.Close()
}
