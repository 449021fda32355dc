package embedder_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/embedder"
	"github.com/agoralabs/debatemem/pkg/embedder/mock"
)

// countingProvider wraps the mock embedder and counts upstream calls.
type countingProvider struct {
	inner      *mock.Embedder
	embeds     int64
	batchTexts int64
}

func newCountingProvider() *countingProvider {
	return &countingProvider{inner: mock.New(32)}
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	atomic.AddInt64(&p.embeds, 1)
	return p.inner.Embed(ctx, text)
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	atomic.AddInt64(&p.batchTexts, int64(len(texts)))
	return p.inner.EmbedBatch(ctx, texts)
}

func (p *countingProvider) Dimensions() int { return p.inner.Dimensions() }
func (p *countingProvider) Close() error    { return p.inner.Close() }

func TestCachedEmbedHitSkipsUpstream(t *testing.T) {
	provider := newCountingProvider()
	cached, err := embedder.NewCached(provider, nil)
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()

	first, err := cached.Embed(ctx, "renewable subsidies")
	require.NoError(t, err)

	// Cache admission is buffered; give it a moment to settle.
	time.Sleep(50 * time.Millisecond)

	second, err := cached.Embed(ctx, "renewable subsidies")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&provider.embeds))
}

func TestCachedEmbedBatchServesHitsLocally(t *testing.T) {
	provider := newCountingProvider()
	cached, err := embedder.NewCached(provider, &embedder.CacheConfig{MaxEntries: 64})
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()

	_, err = cached.Embed(ctx, "warm entry")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	vecs, err := cached.EmbedBatch(ctx, []string{"warm entry", "cold entry"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotNil(t, vecs[0])
	assert.NotNil(t, vecs[1])

	assert.Equal(t, int64(1), atomic.LoadInt64(&provider.batchTexts), "only the miss goes upstream")
}

func TestCachedDimensionsDelegates(t *testing.T) {
	provider := newCountingProvider()
	cached, err := embedder.NewCached(provider, nil)
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, 32, cached.Dimensions())
}
