package intelligence

import (
	"strings"
	"unicode"
)

// Compressor shortens old turn text by extractive sentence sampling.
//
// The first and last sentences are always kept verbatim: openings carry the
// claim and closings carry the conclusion. Middle sentences are sampled
// evenly at the configured ratio, preserving original order. No text is ever
// paraphrased, so compressed turns remain quotable.
type Compressor struct {
	// ratio is the fraction of middle sentences to keep, in (0,1].
	ratio float64
}

// NewCompressor creates a compressor. Ratios outside (0,1] default to 0.5.
func NewCompressor(ratio float64) *Compressor {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &Compressor{ratio: ratio}
}

// Compress returns the shortened text. Texts of two sentences or fewer are
// returned unchanged; there is no middle to sample.
func (c *Compressor) Compress(text string) string {
	sentences := splitSentences(text)
	if len(sentences) <= 2 {
		return text
	}

	middle := sentences[1 : len(sentences)-1]
	keep := int(float64(len(middle)) * c.ratio)

	kept := make([]string, 0, keep+2)
	kept = append(kept, sentences[0])

	if keep > 0 {
		// Evenly spaced sample over the middle, order preserved.
		step := float64(len(middle)) / float64(keep)
		for i := 0; i < keep; i++ {
			kept = append(kept, middle[int(float64(i)*step)])
		}
	}

	kept = append(kept, sentences[len(sentences)-1])

	return strings.Join(kept, " ")
}

// splitSentences splits text on terminal punctuation, keeping the
// punctuation attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Sentence ends only when followed by space or end of text,
			// so decimals and abbreviations mostly survive.
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
