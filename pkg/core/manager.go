// Package core provides the debatemem Manager and memory orchestration.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agoralabs/debatemem/pkg/embedder"
	embedmock "github.com/agoralabs/debatemem/pkg/embedder/mock"
	embedopenai "github.com/agoralabs/debatemem/pkg/embedder/openai"
	"github.com/agoralabs/debatemem/pkg/intelligence"
	"github.com/agoralabs/debatemem/pkg/lexical"
	"github.com/agoralabs/debatemem/pkg/llm"
	llmopenai "github.com/agoralabs/debatemem/pkg/llm/openai"
	"github.com/agoralabs/debatemem/pkg/retriever"
	"github.com/agoralabs/debatemem/pkg/storage"
	storechromem "github.com/agoralabs/debatemem/pkg/storage/chromem"
	storemysql "github.com/agoralabs/debatemem/pkg/storage/mysql"
	storepostgres "github.com/agoralabs/debatemem/pkg/storage/postgres"
	storesqlite "github.com/agoralabs/debatemem/pkg/storage/sqlite"
	"github.com/agoralabs/debatemem/pkg/window"
)

// Manager is the session-scoped entry point of the memory engine.
//
// One Manager serves one debate session: it owns the session's short-term
// window and turn counter, and partitions a shared vector index by session
// ID. Multiple Managers may share a single index.
//
// Example:
//
//	config, _ := core.LoadConfigFromEnv()
//	mgr, err := core.NewManager(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	id, _ := mgr.AddInteraction(ctx, core.RoleProponent, "Solar is now the cheapest power source")
//	results, _ := mgr.SearchMemories(ctx, "energy costs")
type Manager struct {
	// mu guards the turn counter. The window carries its own lock.
	mu sync.Mutex

	config   *Config
	index    storage.VectorIndex
	embedder embedder.Provider
	llm      llm.Provider
	retr     *retriever.Retriever
	window   *window.Window
	node     *snowflake.Node
	logger   *zap.Logger

	sessionID string
	topic     string
	turnIndex int

	valueScorer *intelligence.ValueScorer
	dedup       *intelligence.Deduplicator
	compressor  *intelligence.Compressor
	checker     *intelligence.ConsistencyChecker
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithSessionID sets the session ID. When omitted, a random UUID is used.
func WithSessionID(sessionID string) ManagerOption {
	return func(m *Manager) {
		m.sessionID = sessionID
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDebateTopic sets the session topic. The topic anchors relevance in
// value scoring and tags stored turns.
func WithDebateTopic(topic string) ManagerOption {
	return func(m *Manager) {
		m.topic = topic
	}
}

// WithVectorIndex injects a vector index, overriding the configured
// provider. Useful for sharing one index across sessions and for tests.
func WithVectorIndex(index storage.VectorIndex) ManagerOption {
	return func(m *Manager) {
		m.index = index
	}
}

// WithEmbedder injects an embedding provider, overriding the configured one.
func WithEmbedder(provider embedder.Provider) ManagerOption {
	return func(m *Manager) {
		m.embedder = provider
	}
}

// WithLLMProvider injects an LLM provider for the re-ranker.
func WithLLMProvider(provider llm.Provider) ManagerOption {
	return func(m *Manager) {
		m.llm = provider
	}
}

// NewManager creates a Manager from configuration.
//
// Components not injected via options are built from the config: the
// embedding provider, the vector index backend, and (when configured) the
// LLM provider backing the re-ranker.
//
// Parameters:
//   - config: Complete configuration (see Config)
//   - opts: Optional overrides (session ID, logger, injected components)
//
// Returns the Manager, or an error if the configuration is invalid or a
// backend fails to initialize.
func NewManager(config *Config, opts ...ManagerOption) (*Manager, error) {
	if config == nil {
		return nil, NewMemoryError("NewManager", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}

	if m.embedder == nil {
		provider, err := buildEmbedder(&config.Embedder)
		if err != nil {
			return nil, NewMemoryError("NewManager", err)
		}
		m.embedder = provider
	}

	if m.index == nil {
		index, err := buildVectorIndex(&config.VectorIndex)
		if err != nil {
			return nil, NewMemoryError("NewManager", err)
		}
		m.index = index
	}

	if m.llm == nil && config.LLM != nil {
		provider, err := llmopenai.NewClient(&llmopenai.Config{
			APIKey:  config.LLM.APIKey,
			Model:   config.LLM.Model,
			BaseURL: config.LLM.BaseURL,
		})
		if err != nil {
			return nil, NewMemoryError("NewManager", err)
		}
		m.llm = provider
	}

	var reranker retriever.Reranker
	if m.llm != nil {
		reranker = retriever.NewLLMReranker(m.llm)
	}

	retr, err := retriever.New(&retriever.Config{
		Index:            m.index,
		Embedder:         m.embedder,
		Lexical:          lexical.NewBleveScorer(),
		Reranker:         reranker,
		RerankWeight:     config.Retrieval.RerankWeight,
		DefaultWeight:    config.Retrieval.Weight,
		DefaultTopK:      config.Retrieval.TopK,
		DefaultThreshold: config.Retrieval.Threshold,
		Logger:           m.logger,
	})
	if err != nil {
		return nil, NewMemoryError("NewManager", err)
	}
	m.retr = retr

	capacity := config.Window.Capacity
	if capacity <= 0 {
		capacity = 10
	}
	m.window = window.New(capacity)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewMemoryError("NewManager", err)
	}
	m.node = node

	m.valueScorer = intelligence.NewValueScorer(&intelligence.ValueScorerConfig{
		MaxTurnDistance: config.Lifecycle.ValueMaxTurns,
		DecayHalfLife:   time.Duration(config.Lifecycle.ValueDecayHours * float64(time.Hour)),
	})
	m.dedup = intelligence.NewDeduplicator(config.Lifecycle.DuplicateThreshold)
	m.compressor = intelligence.NewCompressor(config.Lifecycle.CompressionRatio)
	m.checker = intelligence.NewConsistencyChecker()

	return m, nil
}

// buildEmbedder constructs the embedding provider from config, wrapping it
// in a cache when one is configured.
func buildEmbedder(cfg *EmbedderConfig) (embedder.Provider, error) {
	var provider embedder.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		provider, err = embedopenai.NewClient(&embedopenai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
	case "mock":
		provider = embedmock.New(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unsupported embedder provider %q", ErrInvalidConfig, cfg.Provider)
	}

	if cfg.CacheEntries > 0 {
		return embedder.NewCached(provider, &embedder.CacheConfig{MaxEntries: cfg.CacheEntries})
	}

	return provider, nil
}

// buildVectorIndex constructs the vector index backend from config.
func buildVectorIndex(cfg *VectorIndexConfig) (storage.VectorIndex, error) {
	c := cfg.Config

	switch cfg.Provider {
	case "sqlite":
		return storesqlite.NewClient(&storesqlite.Config{
			DBPath:        getStringConfig(c, "db_path", "./debatemem.db"),
			TableName:     getStringConfig(c, "table_name", "debate_turns"),
			EmbeddingDims: getIntConfig(c, "embedding_model_dims", 1536),
		})
	case "postgres":
		return storepostgres.NewClient(&storepostgres.Config{
			Host:          getStringConfig(c, "host", "localhost"),
			Port:          getIntConfig(c, "port", 5432),
			User:          getStringConfig(c, "user", "postgres"),
			Password:      getStringConfig(c, "password", ""),
			DBName:        getStringConfig(c, "db_name", "debatemem"),
			TableName:     getStringConfig(c, "table_name", "debate_turns"),
			EmbeddingDims: getIntConfig(c, "embedding_model_dims", 1536),
			SSLMode:       getStringConfig(c, "ssl_mode", "disable"),
		})
	case "mysql":
		return storemysql.NewClient(&storemysql.Config{
			Host:          getStringConfig(c, "host", "localhost"),
			Port:          getIntConfig(c, "port", 3306),
			User:          getStringConfig(c, "user", "root"),
			Password:      getStringConfig(c, "password", ""),
			DBName:        getStringConfig(c, "db_name", "debatemem"),
			TableName:     getStringConfig(c, "table_name", "debate_turns"),
			EmbeddingDims: getIntConfig(c, "embedding_model_dims", 1536),
		})
	case "chromem":
		return storechromem.NewClient(&storechromem.Config{
			Path:          getStringConfig(c, "path", ""),
			Collection:    getStringConfig(c, "collection", "debate_turns"),
			EmbeddingDims: getIntConfig(c, "embedding_model_dims", 1536),
		})
	default:
		return nil, fmt.Errorf("%w: unsupported vector index provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// SessionID returns the Manager's session ID.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// currentTurn reads the session's turn counter.
func (m *Manager) currentTurn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnIndex
}

// AddInteraction records one debate turn.
//
// The turn enters the short-term window immediately, in caller order. It is
// then embedded and inserted into the long-term index unless ShortTermOnly
// is set. An embedding or storage failure surfaces as an error but never
// rolls back the window push.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - role: Debate role producing the turn (see Role constants)
//   - text: The turn content
//   - opts: Optional parameters (topic, metadata, short-term only)
//
// Returns the stored record ID, or 0 for short-term-only turns.
func (m *Manager) AddInteraction(ctx context.Context, role, text string, opts ...AddOption) (int64, error) {
	if strings.TrimSpace(text) == "" || role == "" {
		return 0, NewMemoryError("AddInteraction", ErrInvalidInput)
	}

	options := applyAddOptions(opts)

	m.mu.Lock()
	turnIndex := m.turnIndex
	m.turnIndex++
	m.mu.Unlock()

	m.window.Push(window.Entry{
		Role:      role,
		Text:      text,
		TurnIndex: turnIndex,
		Metadata:  options.Metadata,
	})

	if options.ShortTermOnly {
		return 0, nil
	}

	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return 0, NewMemoryError("AddInteraction", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}

	topic := options.Topic
	if topic == "" {
		topic = m.topic
	}

	rec := &storage.Record{
		ID:        m.node.Generate().Int64(),
		SessionID: m.sessionID,
		Role:      role,
		Text:      text,
		Embedding: emb,
		TurnIndex: turnIndex,
		Topic:     topic,
		Metadata:  options.Metadata,
		CreatedAt: time.Now(),
	}

	if err := m.index.Insert(ctx, rec); err != nil {
		return 0, NewMemoryError("AddInteraction", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	return rec.ID, nil
}

// SearchMemories retrieves the most relevant stored turns for a query.
//
// Retrieval is session-scoped unless WithCrossSession is passed. Fusion
// weight, threshold, and top-k fall back to the configured defaults.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: The search query text
//   - opts: Optional parameters (role filter, top-k, weight, threshold, rerank)
//
// Returns ranked results, or an empty slice when nothing qualifies.
func (m *Manager) SearchMemories(ctx context.Context, query string, opts ...SearchOption) ([]*RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewMemoryError("SearchMemories", ErrInvalidInput)
	}

	options := m.applySearchOptions(opts)

	// Parameter validation happens before any I/O.
	if options.Weight < 0 || options.Weight > 1 {
		return nil, NewMemoryError("SearchMemories", ErrInvalidConfig)
	}
	if options.Threshold < 0 || options.Threshold > 1 {
		return nil, NewMemoryError("SearchMemories", ErrInvalidConfig)
	}
	if options.TopK <= 0 {
		return nil, nil
	}

	searchOpts := []retriever.SearchOption{
		retriever.WithTopK(options.TopK),
		retriever.WithWeight(options.Weight),
		retriever.WithThreshold(options.Threshold),
	}
	if !options.CrossSession {
		searchOpts = append(searchOpts, retriever.WithSessionID(m.sessionID))
	}
	if options.Role != "" {
		searchOpts = append(searchOpts, retriever.WithRole(options.Role))
	}
	if options.Filters != nil {
		searchOpts = append(searchOpts, retriever.WithFilters(options.Filters))
	}
	if options.Rerank {
		if m.llm == nil {
			m.logger.Warn("rerank requested but no LLM provider is configured")
		} else {
			searchOpts = append(searchOpts, retriever.WithRerank())
		}
	}

	hits, err := m.retr.Search(ctx, query, searchOpts...)
	if err != nil {
		return nil, NewMemoryError("SearchMemories", err)
	}

	results := make([]*RetrievalResult, len(hits))
	for i, hit := range hits {
		results[i] = fromRetrieverResult(hit)
	}

	return results, nil
}

// GetRoleHistory returns every stored turn of one role in this session,
// ordered by turn index ascending.
func (m *Manager) GetRoleHistory(ctx context.Context, role string) ([]*MemoryRecord, error) {
	if role == "" {
		return nil, NewMemoryError("GetRoleHistory", ErrInvalidInput)
	}

	records, err := m.index.List(ctx, &storage.ListOptions{
		SessionID: m.sessionID,
		Role:      role,
	})
	if err != nil {
		return nil, NewMemoryError("GetRoleHistory", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	out := make([]*MemoryRecord, len(records))
	for i, rec := range records {
		out[i] = fromStorageRecord(rec)
	}

	return out, nil
}

// GetMemorySummary returns a diagnostic snapshot of the session's memory.
func (m *Manager) GetMemorySummary(ctx context.Context) (*MemorySummary, error) {
	count, err := m.index.Count(ctx, m.sessionID)
	if err != nil {
		return nil, NewMemoryError("GetMemorySummary", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	return &MemorySummary{
		SessionID:         m.sessionID,
		ShortTermCount:    m.window.Len(),
		ShortTermCapacity: m.window.Capacity(),
		LongTermCount:     count,
	}, nil
}

// Reset clears this session's memory: the short-term window and the
// session's partition of the vector index. Other sessions sharing the index
// are untouched.
func (m *Manager) Reset(ctx context.Context) error {
	m.window.Clear()

	m.mu.Lock()
	m.turnIndex = 0
	m.mu.Unlock()

	if err := m.index.DeleteAll(ctx, &storage.DeleteAllOptions{SessionID: m.sessionID}); err != nil {
		return NewMemoryError("Reset", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}

	return nil
}

// Close releases the Manager's resources.
func (m *Manager) Close() error {
	var firstErr error

	if err := m.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if m.llm != nil {
		if err := m.llm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return NewMemoryError("Close", firstErr)
}

// getStringConfig reads a string value from a provider config map.
func getStringConfig(c map[string]interface{}, key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

// getIntConfig reads an int value from a provider config map. JSON decodes
// numbers as float64, so both forms are accepted.
func getIntConfig(c map[string]interface{}, key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
