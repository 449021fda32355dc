package intelligence

import (
	"sort"
	"strings"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// defaultNegations marks a statement as negated when any of these tokens
// appear in it.
var defaultNegations = map[string]bool{
	"not": true, "never": true, "no": true, "false": true,
	"wrong": true, "isn't": true, "aren't": true, "don't": true,
	"doesn't": true, "won't": true, "cannot": true, "can't": true,
	"untrue": true, "incorrect": true,
}

// stopWords are filtered out before key-term comparison.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "shall": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true,
	"he": true, "she": true, "it": true, "we": true, "they": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "as": true,
	"about": true, "into": true, "through": true, "their": true,
	"there": true, "which": true, "what": true, "when": true,
	"where": true, "who": true, "how": true, "why": true, "all": true,
	"its": true, "my": true, "your": true, "our": true, "than": true,
	"more": true, "most": true, "very": true, "just": true, "also": true,
	"so": true, "because": true, "while": true, "some": true, "any": true,
}

// Inconsistency is one flagged pair of turns that discuss the same subject
// with opposite polarity.
type Inconsistency struct {
	// RecordA is the earlier turn (lower turn index).
	RecordA *storage.Record

	// RecordB is the later turn.
	RecordB *storage.Record

	// SharedTerms are the key terms both turns share, sorted.
	SharedTerms []string
}

// ConsistencyReport summarizes a consistency check over a set of turns.
type ConsistencyReport struct {
	// Inconsistencies lists the flagged pairs.
	Inconsistencies []Inconsistency

	// CheckedPairs is the number of pairs that shared enough key terms to
	// be comparable.
	CheckedPairs int

	// Score is 1 - flagged/checked, so 1.0 means no contradictions among
	// comparable pairs. An empty check scores 1.0.
	Score float64
}

// ConsistencyChecker flags pairs of turns that cover the same key terms but
// differ in negation polarity.
//
// This is a lexical heuristic, not entailment: it catches "X is true" vs
// "X is not true" style reversals, which is the dominant contradiction
// pattern in position-taking debate turns.
type ConsistencyChecker struct {
	// negations overrides the default negation lexicon when non-nil.
	negations map[string]bool

	// minSharedTerms is the minimum key-term overlap for a pair to be
	// comparable.
	minSharedTerms int
}

// NewConsistencyChecker creates a checker with the default negation lexicon.
// A single shared key term makes a pair comparable: debate turns restate the
// same subject in different vocabulary ("cheap" vs "cost-effective"), so
// requiring more overlap silently skips exactly the reversals worth flagging.
func NewConsistencyChecker() *ConsistencyChecker {
	return &ConsistencyChecker{
		negations:      defaultNegations,
		minSharedTerms: 1,
	}
}

// WithNegations replaces the negation lexicon and returns the checker.
func (c *ConsistencyChecker) WithNegations(words []string) *ConsistencyChecker {
	negations := make(map[string]bool, len(words))
	for _, w := range words {
		negations[strings.ToLower(w)] = true
	}
	c.negations = negations
	return c
}

// Check compares every pair of turns and reports the contradictions found.
func (c *ConsistencyChecker) Check(records []*storage.Record) *ConsistencyReport {
	report := &ConsistencyReport{Score: 1.0}
	if len(records) < 2 {
		return report
	}

	sorted := make([]*storage.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TurnIndex < sorted[j].TurnIndex
	})

	type analyzed struct {
		rec     *storage.Record
		terms   map[string]bool
		negated bool
	}

	items := make([]analyzed, len(sorted))
	for i, rec := range sorted {
		tokens := tokenizeWords(rec.Text)
		items[i] = analyzed{
			rec:     rec,
			terms:   keyTerms(tokens),
			negated: c.hasNegation(tokens),
		}
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			shared := sharedTerms(items[i].terms, items[j].terms)
			if len(shared) < c.minSharedTerms {
				continue
			}
			report.CheckedPairs++

			// Same subject, opposite polarity.
			if items[i].negated != items[j].negated {
				report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
					RecordA:     items[i].rec,
					RecordB:     items[j].rec,
					SharedTerms: shared,
				})
			}
		}
	}

	if report.CheckedPairs > 0 {
		report.Score = 1.0 - float64(len(report.Inconsistencies))/float64(report.CheckedPairs)
	}

	return report
}

// CompareStatement checks a candidate statement against prior turns and
// returns the turns that contradict it. A prior turn contradicts the
// statement when they share at least the minimum key terms but differ in
// negation polarity.
//
// The returned report counts every comparable turn, so the score reflects
// how consistent the statement is with the history it touches.
func (c *ConsistencyChecker) CompareStatement(statement string, records []*storage.Record) *ConsistencyReport {
	report := &ConsistencyReport{Score: 1.0}

	stmtTokens := tokenizeWords(statement)
	stmtTerms := keyTerms(stmtTokens)
	stmtNegated := c.hasNegation(stmtTokens)

	for _, rec := range records {
		tokens := tokenizeWords(rec.Text)
		shared := sharedTerms(stmtTerms, keyTerms(tokens))
		if len(shared) < c.minSharedTerms {
			continue
		}
		report.CheckedPairs++

		if c.hasNegation(tokens) != stmtNegated {
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				RecordB:     rec,
				SharedTerms: shared,
			})
		}
	}

	if report.CheckedPairs > 0 {
		report.Score = 1.0 - float64(len(report.Inconsistencies))/float64(report.CheckedPairs)
	}

	return report
}

// hasNegation reports whether any token is in the negation lexicon.
func (c *ConsistencyChecker) hasNegation(tokens []string) bool {
	for _, t := range tokens {
		if c.negations[t] {
			return true
		}
	}
	return false
}

// keyTerms filters stopwords and negations out of the token list, leaving
// the content-bearing vocabulary.
func keyTerms(tokens []string) map[string]bool {
	terms := make(map[string]bool)
	for _, t := range tokens {
		if len(t) < 3 || stopWords[t] || defaultNegations[t] {
			continue
		}
		terms[t] = true
	}
	return terms
}

// sharedTerms returns the sorted intersection of two term sets.
func sharedTerms(a, b map[string]bool) []string {
	var shared []string
	for t := range a {
		if b[t] {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

// tokenizeWords lowercases and splits text into word tokens, keeping
// apostrophes so contractions like "don't" survive as single tokens.
func tokenizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
}
