package core_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/core"
	"github.com/agoralabs/debatemem/pkg/embedder/mock"
	"github.com/agoralabs/debatemem/pkg/intelligence"
	"github.com/agoralabs/debatemem/pkg/storage"
)

// fakeIndex is an in-memory VectorIndex shared by the manager tests.
type fakeIndex struct {
	mu      sync.Mutex
	records map[int64]*storage.Record
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[int64]*storage.Record)}
}

func (f *fakeIndex) Insert(ctx context.Context, rec *storage.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.Record
	for _, rec := range f.records {
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Role != "" && rec.Role != opts.Role {
			continue
		}
		cp := *rec
		cp.Score = intelligence.CosineSimilarity(embedding, rec.Embedding)
		if cp.Score < opts.MinScore {
			continue
		}
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeIndex) Get(ctx context.Context, id int64) (*storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeIndex) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return storage.ErrRecordNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeIndex) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.Record
	for _, rec := range f.records {
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Role != "" && rec.Role != opts.Role {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

func (f *fakeIndex) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, rec := range f.records {
		if opts.SessionID == "" || rec.SessionID == opts.SessionID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeIndex) Count(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID == "" {
		return len(f.records), nil
	}
	n := 0
	for _, rec := range f.records {
		if rec.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeIndex) Close() error { return nil }

func testConfig() *core.Config {
	return &core.Config{
		Embedder: core.EmbedderConfig{
			Provider:   "mock",
			Dimensions: 256,
		},
		VectorIndex: core.VectorIndexConfig{
			Provider: "chromem",
		},
		Retrieval: core.RetrievalConfig{
			Weight: 0.7,
			TopK:   5,
		},
		Window: core.WindowConfig{
			Capacity: 10,
		},
	}
}

func newTestManager(t *testing.T, opts ...core.ManagerOption) (*core.Manager, *fakeIndex) {
	t.Helper()

	index := newFakeIndex()
	opts = append([]core.ManagerOption{
		core.WithVectorIndex(index),
		core.WithEmbedder(mock.New(256)),
		core.WithSessionID("test-session"),
	}, opts...)

	mgr, err := core.NewManager(testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr, index
}

func TestAddAndSearchRoundtrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	id, err := mgr.AddInteraction(ctx, core.RoleProponent, "Renewable energy subsidies accelerate adoption.")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = mgr.AddInteraction(ctx, core.RoleOpponent, "Tournament seeding rules changed this year.")
	require.NoError(t, err)

	results, err := mgr.SearchMemories(ctx, "renewable energy adoption")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "Renewable energy subsidies accelerate adoption.", results[0].Record.Text)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "test-session", results[0].Record.SessionID)
}

func TestAddInteractionValidation(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = mgr.AddInteraction(ctx, "", "some text")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestShortTermOnlyStaysOutOfIndex(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	id, err := mgr.AddInteraction(ctx, core.RoleSystem, "Two minutes remaining.", core.WithShortTermOnly())
	require.NoError(t, err)
	assert.Zero(t, id)

	summary, err := mgr.GetMemorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ShortTermCount)
	assert.Equal(t, 0, summary.LongTermCount)
}

func TestSearchMemoriesValidation(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.SearchMemories(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = mgr.SearchMemories(ctx, "q", core.WithWeight(1.5))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = mgr.SearchMemories(ctx, "q", core.WithThreshold(-0.1))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	results, err := mgr.SearchMemories(ctx, "q", core.WithTopK(0))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSessionIsolationAndCrossSession(t *testing.T) {
	index := newFakeIndex()
	ctx := context.Background()

	mgrA, err := core.NewManager(testConfig(),
		core.WithVectorIndex(index),
		core.WithEmbedder(mock.New(256)),
		core.WithSessionID("session-a"))
	require.NoError(t, err)
	defer func() { _ = mgrA.Close() }()

	mgrB, err := core.NewManager(testConfig(),
		core.WithVectorIndex(index),
		core.WithEmbedder(mock.New(256)),
		core.WithSessionID("session-b"))
	require.NoError(t, err)
	defer func() { _ = mgrB.Close() }()

	_, err = mgrA.AddInteraction(ctx, core.RoleProponent, "Carbon pricing internalizes externalities.")
	require.NoError(t, err)
	_, err = mgrB.AddInteraction(ctx, core.RoleProponent, "Carbon pricing raises consumer costs.")
	require.NoError(t, err)

	scoped, err := mgrA.SearchMemories(ctx, "carbon pricing")
	require.NoError(t, err)
	for _, res := range scoped {
		assert.Equal(t, "session-a", res.Record.SessionID)
	}

	all, err := mgrA.SearchMemories(ctx, "carbon pricing", core.WithCrossSession())
	require.NoError(t, err)
	assert.Greater(t, len(all), len(scoped))
}

func TestGetRoleHistoryOrdered(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Opening statement.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleOpponent, "Counter argument.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Rebuttal point.")
	require.NoError(t, err)

	history, err := mgr.GetRoleHistory(ctx, core.RoleProponent)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Opening statement.", history[0].Text)
	assert.Equal(t, "Rebuttal point.", history[1].Text)
	assert.Less(t, history[0].TurnIndex, history[1].TurnIndex)
}

func TestBuildContextPayloadZonesAlwaysPresent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	payload, err := mgr.BuildContextPayload(ctx, core.RoleProponent, "Should subsidies continue?")
	require.NoError(t, err)

	require.Len(t, payload.Zones, 4)
	assert.Equal(t, core.ZoneSystem, payload.Zones[0].Name)
	assert.Equal(t, core.ZoneEvidence, payload.Zones[1].Name)
	assert.Equal(t, core.ZoneRecent, payload.Zones[2].Name)
	assert.Equal(t, core.ZoneTask, payload.Zones[3].Name)

	assert.Equal(t, core.MarkerNoEvidence, payload.Zone(core.ZoneEvidence).Content)
	assert.Equal(t, core.MarkerEmpty, payload.Zone(core.ZoneRecent).Content)
	assert.Equal(t, "Should subsidies continue?", payload.Zone(core.ZoneTask).Content)
	assert.Greater(t, payload.TotalTokenEstimate, 0)
}

func TestBuildContextPayloadWithEvidence(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleOpponent, "Renewable energy subsidies distort markets.")
	require.NoError(t, err)

	payload, err := mgr.BuildContextPayload(ctx, core.RoleProponent, "renewable energy subsidies")
	require.NoError(t, err)

	evidence := payload.Zone(core.ZoneEvidence)
	require.NotNil(t, evidence)
	assert.Contains(t, evidence.Content, "distort markets")
	assert.Contains(t, evidence.Content, "opponent")

	recent := payload.Zone(core.ZoneRecent)
	assert.Contains(t, recent.Content, "[turn 0] opponent:")
}

func TestBuildContextPayloadSkipEvidence(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	payload, err := mgr.BuildContextPayload(ctx, core.RoleProponent, "any task", core.WithoutEvidence())
	require.NoError(t, err)

	assert.Equal(t, core.MarkerNotRequested, payload.Zone(core.ZoneEvidence).Content)
}

func TestBuildContextPayloadSkipRecent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "A turn in the window.")
	require.NoError(t, err)

	payload, err := mgr.BuildContextPayload(ctx, core.RoleProponent, "any task", core.WithoutRecent())
	require.NoError(t, err)

	recent := payload.Zone(core.ZoneRecent)
	require.NotNil(t, recent)
	assert.Equal(t, core.MarkerNotRequested, recent.Content, "opted out is not the same as empty")
}

func TestBuildContextPayloadEvidenceQuery(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleOpponent, "Renewable energy subsidies distort markets.")
	require.NoError(t, err)

	payload, err := mgr.BuildContextPayload(ctx, core.RoleProponent, "Deliver your closing statement.",
		core.WithEvidenceQuery("renewable energy subsidies"))
	require.NoError(t, err)

	assert.Contains(t, payload.Zone(core.ZoneEvidence).Content, "distort markets")
	assert.Equal(t, "Deliver your closing statement.", payload.Zone(core.ZoneTask).Content,
		"the task zone carries the task, not the evidence query")
}

func TestBuildRoleReversalContext(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Subsidies have driven down solar costs.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Grid parity arrived a decade early.")
	require.NoError(t, err)

	payload, err := mgr.BuildRoleReversalContext(ctx, core.RoleOpponent, core.RoleProponent, "Argue against subsidies.")
	require.NoError(t, err)

	require.Len(t, payload.Zones, 5)
	assert.Equal(t, core.ZoneSystem, payload.Zones[0].Name)
	assert.Equal(t, core.ZonePriorCommitments, payload.Zones[1].Name)
	assert.Equal(t, core.RoleOpponent, payload.Role)

	commitments := payload.Zone(core.ZonePriorCommitments)
	assert.Contains(t, commitments.Content, "previous statements as proponent")
	assert.Contains(t, commitments.Content, "solar costs")
	assert.Contains(t, commitments.Content, "Grid parity")
}

func TestBuildRoleReversalContextBounded(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Oldest commitment statement.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Newest commitment statement.")
	require.NoError(t, err)

	payload, err := mgr.BuildRoleReversalContext(ctx, core.RoleOpponent, core.RoleProponent, "task",
		core.WithMaxReversalTurns(1))
	require.NoError(t, err)

	commitments := payload.Zone(core.ZonePriorCommitments)
	assert.Contains(t, commitments.Content, "Newest commitment")
	assert.NotContains(t, commitments.Content, "Oldest commitment")
}

func TestDetectMemoryInconsistencies(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Renewable energy subsidies are effective policy.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Debate rounds last eight minutes.")
	require.NoError(t, err)

	result, err := mgr.DetectMemoryInconsistencies(ctx, core.RoleProponent,
		"Renewable energy subsidies are not effective policy.", 0.3)
	require.NoError(t, err)

	assert.True(t, result.HasInconsistencies)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Excerpt, "effective policy")
	assert.Contains(t, result.Warnings[0].SharedTerms, "subsidies")
	assert.Less(t, result.ConsistencyScore, 1.0)
	require.NotEmpty(t, result.Related)
	assert.Contains(t, result.Related[0].Text, "effective policy")
}

func TestDetectMemoryInconsistenciesSingleSharedTerm(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Renewables are cheap.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Debate rounds last eight minutes.")
	require.NoError(t, err)

	// The reversal restates the subject with different vocabulary, so only
	// "renewables" overlaps. It must still be flagged.
	result, err := mgr.DetectMemoryInconsistencies(ctx, core.RoleProponent,
		"Renewables are NOT cost-effective.", 0.3)
	require.NoError(t, err)

	assert.True(t, result.HasInconsistencies)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Excerpt, "Renewables are cheap")
	assert.Contains(t, result.Warnings[0].SharedTerms, "renewables")
	assert.Less(t, result.ConsistencyScore, 1.0)
}

func TestDetectMemoryInconsistenciesConsistentStatement(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Renewable energy subsidies are effective policy.")
	require.NoError(t, err)

	result, err := mgr.DetectMemoryInconsistencies(ctx, core.RoleProponent,
		"Renewable energy subsidies remain effective policy today.", 0.3)
	require.NoError(t, err)

	assert.False(t, result.HasInconsistencies)
	assert.Empty(t, result.Warnings)
	assert.InDelta(t, 1.0, result.ConsistencyScore, 1e-9)
}

func TestDeduplicateMemories(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Solar is the cheapest power source.")
		require.NoError(t, err)
	}
	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Wind complements solar generation at night.")
	require.NoError(t, err)

	result, err := mgr.DeduplicateMemories(ctx, 0.95)
	require.NoError(t, err)
	assert.Len(t, result.RemovedIDs, 2)
	require.Len(t, result.DuplicatePairs, 2)
	for _, pair := range result.DuplicatePairs {
		assert.NotEqual(t, pair.RemovedID, pair.KeptID)
	}
	assert.Greater(t, result.TokensSaved, 0)

	summary, err := mgr.GetMemorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.LongTermCount)

	// Survivor is the most recent phrasing.
	history, err := mgr.GetRoleHistory(ctx, core.RoleProponent)
	require.NoError(t, err)
	assert.Equal(t, 2, history[0].TurnIndex)
	assert.NotContains(t, result.RemovedIDs, history[0].ID)
}

func TestTruncateLowValueMemoriesIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Filler small talk about the venue.")
	require.NoError(t, err)
	_, err = mgr.AddInteraction(ctx, core.RoleOpponent, "More filler about seating arrangements.")
	require.NoError(t, err)

	result, err := mgr.TruncateLowValueMemories(ctx, 0.99, "renewable energy subsidies")
	require.NoError(t, err)
	assert.Len(t, result.RemovedIDs, 2)
	assert.Greater(t, result.TokensSaved, 0)

	again, err := mgr.TruncateLowValueMemories(ctx, 0.99, "renewable energy subsidies")
	require.NoError(t, err)
	assert.Empty(t, again.RemovedIDs)
}

func TestTruncateThresholdRange(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.TruncateLowValueMemories(context.Background(), 1.5, "")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestCalculateMemoryValueScore(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	id, err := mgr.AddInteraction(ctx, core.RoleModerator, "The motion concerns renewable subsidies.")
	require.NoError(t, err)

	score, err := mgr.CalculateMemoryValueScore(ctx, id, "renewable subsidies")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	_, err = mgr.CalculateMemoryValueScore(ctx, 999999, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCompressOldMemories(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	long := "Subsidies work. Solar costs fell ninety percent in a decade. " +
		"Wind followed the same curve. Storage is catching up fast. " +
		"Transmission buildout lags behind. The conclusion stands."
	_, err := mgr.AddInteraction(ctx, core.RoleProponent, long)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := mgr.AddInteraction(ctx, core.RoleOpponent, "Recent short turn.")
		require.NoError(t, err)
	}

	result, err := mgr.CompressOldMemories(ctx, 3, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CompressedCount)
	assert.Greater(t, result.OriginalTokens, result.CompressedTokens)
	assert.Greater(t, result.CompressedTokens, 0)
	assert.Equal(t, result.OriginalTokens-result.CompressedTokens, result.TokensSaved())

	history, err := mgr.GetRoleHistory(ctx, core.RoleProponent)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].TurnIndex, "turn index survives compression")
	assert.Less(t, len(history[0].Text), len(long))
	assert.Contains(t, history[0].Text, "Subsidies work.")
	assert.Contains(t, history[0].Text, "The conclusion stands.")
}

func TestOptimizeDispatch(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := mgr.AddInteraction(ctx, core.RoleProponent, "Identical repeated claim about subsidies.")
		require.NoError(t, err)
	}

	out, err := mgr.Optimize(ctx, core.OpDeduplicate, map[string]interface{}{"threshold": 0.95})
	require.NoError(t, err)
	dedupResult, ok := out.(*core.DeduplicationResult)
	require.True(t, ok)
	assert.Len(t, dedupResult.RemovedIDs, 1)
	assert.Greater(t, dedupResult.TokensSaved, 0)

	_, err = mgr.Optimize(ctx, "defragment", nil)
	assert.ErrorIs(t, err, core.ErrUnknownOperation)
}

func TestReset(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddInteraction(ctx, core.RoleProponent, "A turn that will be wiped.")
	require.NoError(t, err)

	require.NoError(t, mgr.Reset(ctx))

	summary, err := mgr.GetMemorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ShortTermCount)
	assert.Equal(t, 0, summary.LongTermCount)

	// Turn numbering restarts after a reset.
	_, err = mgr.AddInteraction(ctx, core.RoleProponent, "Fresh start.")
	require.NoError(t, err)
	history, err := mgr.GetRoleHistory(ctx, core.RoleProponent)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].TurnIndex)
}

func TestResetIsSessionScoped(t *testing.T) {
	index := newFakeIndex()
	ctx := context.Background()

	mgrA, err := core.NewManager(testConfig(),
		core.WithVectorIndex(index),
		core.WithEmbedder(mock.New(256)),
		core.WithSessionID("session-a"))
	require.NoError(t, err)
	defer func() { _ = mgrA.Close() }()

	mgrB, err := core.NewManager(testConfig(),
		core.WithVectorIndex(index),
		core.WithEmbedder(mock.New(256)),
		core.WithSessionID("session-b"))
	require.NoError(t, err)
	defer func() { _ = mgrB.Close() }()

	_, err = mgrA.AddInteraction(ctx, core.RoleProponent, "Session A turn.")
	require.NoError(t, err)
	_, err = mgrB.AddInteraction(ctx, core.RoleProponent, "Session B turn.")
	require.NoError(t, err)

	require.NoError(t, mgrA.Reset(ctx))

	summaryB, err := mgrB.GetMemorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summaryB.LongTermCount, "other sessions are untouched")
}
