package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/embedder/mock"
)

func TestEmbedDeterministic(t *testing.T) {
	e := mock.New(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "renewable energy subsidies")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "renewable energy subsidies")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
}

func TestEmbedNormalized(t *testing.T) {
	e := mock.New(64)

	vec, err := e.Embed(context.Background(), "carbon pricing works")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestSharedWordsRaiseSimilarity(t *testing.T) {
	e := mock.New(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "solar power is cheap")
	b, _ := e.Embed(ctx, "solar power is clean")
	c, _ := e.Embed(ctx, "tournament bracket seeding")

	assert.Greater(t, dot(a, b), dot(a, c), "overlapping vocabulary scores higher")
}

func TestEmbedBatchOrder(t *testing.T) {
	e := mock.New(32)
	ctx := context.Background()

	vecs, err := e.EmbedBatch(ctx, []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	first, _ := e.Embed(ctx, "first")
	assert.Equal(t, first, vecs[0])
}

func TestDimensionsDefault(t *testing.T) {
	assert.Equal(t, 128, mock.New(0).Dimensions())
	assert.Equal(t, 16, mock.New(16).Dimensions())
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
