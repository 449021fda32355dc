package lexical_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/lexical"
)

func TestScoreOverlapAndAlignment(t *testing.T) {
	scorer := lexical.NewBleveScorer()

	docs := []lexical.Document{
		{ID: "1", Text: "Offshore wind turbines generate power at night."},
		{ID: "2", Text: "Solar panels need daylight to generate power."},
		{ID: "3", Text: "Debate formats vary between tournaments."},
	}

	scores, err := scorer.Score(context.Background(), "wind power generation", docs)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Greater(t, scores[0], 0.0, "wind and power overlap")
	assert.Greater(t, scores[1], 0.0, "power overlaps")
	assert.Equal(t, 0.0, scores[2], "no overlap scores zero")
	assert.Greater(t, scores[0], scores[1], "two-term overlap outranks one")
}

func TestScoreEmptyDocs(t *testing.T) {
	scorer := lexical.NewBleveScorer()

	scores, err := scorer.Score(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScoreEmptyQuery(t *testing.T) {
	scorer := lexical.NewBleveScorer()

	docs := []lexical.Document{{ID: "1", Text: "some candidate text"}}
	scores, err := scorer.Score(context.Background(), "", docs)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 0.0, scores[0])
}

func TestScoreDuplicateTextSameScore(t *testing.T) {
	scorer := lexical.NewBleveScorer()

	docs := []lexical.Document{
		{ID: "a", Text: "carbon pricing works"},
		{ID: "b", Text: "carbon pricing works"},
	}

	scores, err := scorer.Score(context.Background(), "carbon pricing", docs)
	require.NoError(t, err)
	assert.InDelta(t, scores[0], scores[1], 1e-9)
}
