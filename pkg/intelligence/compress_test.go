package intelligence_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agoralabs/debatemem/pkg/intelligence"
)

func TestCompressKeepsFirstAndLastSentences(t *testing.T) {
	c := intelligence.NewCompressor(0.5)

	text := "Solar power is the cheapest source. Panel prices fell ninety percent. " +
		"Grid storage remains a challenge. Permitting is slow in most states. " +
		"The trend clearly favors renewables."

	out := c.Compress(text)

	assert.True(t, strings.HasPrefix(out, "Solar power is the cheapest source."))
	assert.True(t, strings.HasSuffix(out, "The trend clearly favors renewables."))
	assert.Less(t, len(out), len(text))
}

func TestCompressTwoSentencesUnchanged(t *testing.T) {
	c := intelligence.NewCompressor(0.5)

	text := "First claim. Final conclusion."
	assert.Equal(t, text, c.Compress(text))
}

func TestCompressSingleSentenceUnchanged(t *testing.T) {
	c := intelligence.NewCompressor(0.3)

	text := "A single sentence with no middle to sample."
	assert.Equal(t, text, c.Compress(text))
}

func TestCompressRatioControlsMiddle(t *testing.T) {
	// Four middle sentences between the bookends.
	text := "Open. M1. M2. M3. M4. Close."

	half := intelligence.NewCompressor(0.5).Compress(text)
	quarter := intelligence.NewCompressor(0.25).Compress(text)

	// ratio 0.5 keeps 2 middle sentences, 0.25 keeps 1.
	assert.Equal(t, 4, len(strings.Fields(half)))
	assert.Equal(t, 3, len(strings.Fields(quarter)))
}

func TestCompressPreservesOrder(t *testing.T) {
	c := intelligence.NewCompressor(0.5)

	text := "Open. M1. M2. M3. M4. Close."
	out := c.Compress(text)

	last := -1
	for _, part := range []string{"Open.", "M", "Close."} {
		idx := strings.Index(out, part)
		assert.Greater(t, idx, last, "sampled sentences keep original order")
		last = idx
	}
}

func TestCompressInvalidRatioDefaults(t *testing.T) {
	text := "Open. M1. M2. M3. M4. Close."

	fromZero := intelligence.NewCompressor(0).Compress(text)
	fromHalf := intelligence.NewCompressor(0.5).Compress(text)

	assert.Equal(t, fromHalf, fromZero)
}

func TestCompressDecimalsSurvive(t *testing.T) {
	c := intelligence.NewCompressor(1.0)

	text := "Costs fell to 3.5 cents per kilowatt hour. Adoption doubled. Growth continues."
	out := c.Compress(text)

	assert.Contains(t, out, "3.5 cents")
}
