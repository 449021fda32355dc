package intelligence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/intelligence"
	"github.com/agoralabs/debatemem/pkg/storage"
)

func turn(id int64, idx int, text string) *storage.Record {
	return &storage.Record{
		ID:        id,
		SessionID: "s1",
		Role:      "proponent",
		Text:      text,
		TurnIndex: idx,
	}
}

func TestCheckFlagsPolarityReversal(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	records := []*storage.Record{
		turn(1, 1, "Renewable energy subsidies are effective policy."),
		turn(2, 2, "Renewable energy subsidies are not effective policy."),
	}

	report := checker.Check(records)

	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, int64(1), report.Inconsistencies[0].RecordA.ID)
	assert.Equal(t, int64(2), report.Inconsistencies[0].RecordB.ID)
	assert.Contains(t, report.Inconsistencies[0].SharedTerms, "subsidies")
	assert.Equal(t, 1, report.CheckedPairs)
	assert.InDelta(t, 0.0, report.Score, 1e-9)
}

func TestCheckSamePolarityNotFlagged(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	records := []*storage.Record{
		turn(1, 1, "Carbon taxes reduce emissions quickly."),
		turn(2, 2, "Carbon taxes reduce emissions in every modeled scenario."),
	}

	report := checker.Check(records)

	assert.Empty(t, report.Inconsistencies)
	assert.Equal(t, 1, report.CheckedPairs)
	assert.InDelta(t, 1.0, report.Score, 1e-9)
}

func TestCheckDisjointTopicsNotComparable(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	records := []*storage.Record{
		turn(1, 1, "Nuclear plants provide reliable baseload capacity."),
		turn(2, 2, "Offshore wind farms never harm migratory birds."),
	}

	report := checker.Check(records)

	assert.Equal(t, 0, report.CheckedPairs)
	assert.InDelta(t, 1.0, report.Score, 1e-9, "an empty check scores 1.0")
}

func TestCheckBothNegatedNotFlagged(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	records := []*storage.Record{
		turn(1, 1, "Coal subsidies are not defensible economics."),
		turn(2, 2, "Coal subsidies never made defensible economics."),
	}

	report := checker.Check(records)

	assert.Empty(t, report.Inconsistencies, "matching polarity is consistent")
	assert.Equal(t, 1, report.CheckedPairs)
}

func TestCompareStatementFindsContradiction(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	history := []*storage.Record{
		turn(1, 1, "Renewable energy subsidies are effective policy."),
		turn(2, 2, "Grid interconnection queues delay new projects."),
	}

	report := checker.CompareStatement("Renewable energy subsidies are not effective policy.", history)

	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, int64(1), report.Inconsistencies[0].RecordB.ID)
	assert.Nil(t, report.Inconsistencies[0].RecordA)
	assert.Equal(t, 1, report.CheckedPairs)
}

func TestCompareStatementSingleSharedTerm(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	// The reversal restates the subject in different vocabulary, so only
	// one key term overlaps. It must still be comparable and flagged.
	history := []*storage.Record{
		turn(1, 1, "Renewables are cheap."),
		turn(2, 2, "Solar had the lowest auction prices last year."),
		turn(3, 3, "Wind capacity doubled over the decade."),
	}

	report := checker.CompareStatement("Renewables are NOT cost-effective.", history)

	require.NotEmpty(t, report.Inconsistencies)
	assert.Equal(t, int64(1), report.Inconsistencies[0].RecordB.ID)
	assert.Contains(t, report.Inconsistencies[0].SharedTerms, "renewables")
	assert.Less(t, report.Score, 1.0)
}

func TestCompareStatementNoHistory(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	report := checker.CompareStatement("Anything goes here.", nil)

	assert.Equal(t, 0, report.CheckedPairs)
	assert.InDelta(t, 1.0, report.Score, 1e-9)
}

func TestCustomNegationLexicon(t *testing.T) {
	checker := intelligence.NewConsistencyChecker().WithNegations([]string{"nope"})

	records := []*storage.Record{
		turn(1, 1, "Carbon capture technology scales economically."),
		turn(2, 2, "Nope, carbon capture technology scales economically."),
	}

	report := checker.Check(records)

	require.Len(t, report.Inconsistencies, 1)
}

func TestContractionsDetected(t *testing.T) {
	checker := intelligence.NewConsistencyChecker()

	records := []*storage.Record{
		turn(1, 1, "Battery storage costs justify grid investment."),
		turn(2, 2, "Battery storage costs don't justify grid investment."),
	}

	report := checker.Check(records)

	require.Len(t, report.Inconsistencies, 1, "apostrophes survive tokenization")
}
