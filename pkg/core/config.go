// Package core provides the debatemem Manager and memory orchestration.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a Manager.
//
// It includes settings for:
//   - Embedding provider (for vector generation)
//   - Vector index (for long-term persistence)
//   - LLM provider (for the optional re-ranker)
//   - Retrieval defaults (fusion weight, top-k, threshold)
//   - Short-term window and lifecycle tuning
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    VectorIndex: core.VectorIndexConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./debatemem.db",
//	        },
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// VectorIndex contains vector index configuration.
	VectorIndex VectorIndexConfig `json:"vector_index"`

	// LLM contains LLM provider configuration. Optional; enables the
	// re-ranker when set.
	LLM *LLMConfig `json:"llm,omitempty"`

	// Retrieval contains hybrid retrieval defaults.
	Retrieval RetrievalConfig `json:"retrieval"`

	// Window contains short-term window configuration.
	Window WindowConfig `json:"window"`

	// Lifecycle contains memory lifecycle tuning.
	Lifecycle LifecycleConfig `json:"lifecycle"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai (any OpenAI-compatible endpoint via BaseURL),
// mock (deterministic, for tests and offline use).
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, mock).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty"`

	// CacheEntries bounds the embedding cache; 0 disables caching.
	CacheEntries int64 `json:"cache_entries,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// The only LLM consumer is the optional re-ranker. Any OpenAI-compatible
// endpoint works via BaseURL.
type LLMConfig struct {
	// Provider is the LLM provider name (openai).
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`
}

// VectorIndexConfig contains configuration for the vector index.
//
// Supported providers: sqlite, postgres, mysql, chromem.
type VectorIndexConfig struct {
	// Provider is the vector index provider name.
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_name, embedding_model_dims
	// For PostgreSQL: host, port, user, password, db_name, table_name, embedding_model_dims, ssl_mode
	// For MySQL: host, port, user, password, db_name, table_name, embedding_model_dims
	// For chromem: path (empty = in-memory), collection, embedding_model_dims
	Config map[string]interface{} `json:"config"`
}

// RetrievalConfig contains hybrid retrieval defaults. Per-search options
// override these.
type RetrievalConfig struct {
	// Weight is the default fusion weight: 1.0 pure semantic, 0.0 pure
	// lexical. Default 0.7.
	Weight float64 `json:"weight"`

	// TopK is the default result count. Default 5.
	TopK int `json:"top_k"`

	// Threshold is the default minimum fused score. Default 0.
	Threshold float64 `json:"threshold"`

	// RerankWeight blends fused and re-ranker scores when re-ranking.
	// Default 0.5.
	RerankWeight float64 `json:"rerank_weight"`
}

// WindowConfig contains short-term window configuration.
type WindowConfig struct {
	// Capacity is the number of recent turns kept. Default 10.
	Capacity int `json:"capacity"`
}

// LifecycleConfig contains memory lifecycle tuning.
type LifecycleConfig struct {
	// DuplicateThreshold is the similarity at or above which two turns
	// are duplicates. Default 0.95.
	DuplicateThreshold float64 `json:"duplicate_threshold"`

	// CompressionRatio is the fraction of middle sentences kept when
	// compressing. Default 0.5.
	CompressionRatio float64 `json:"compression_ratio"`

	// ValueMaxTurns is the recency horizon for value scoring, in turns.
	// Default 100.
	ValueMaxTurns int `json:"value_max_turns"`

	// ValueDecayHours switches value-scoring recency to a wall-clock
	// half-life, for sessions spanning days. Zero (the default) keeps
	// turn-distance recency.
	ValueDecayHours float64 `json:"value_decay_hours"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql, chromem)
//   - SQLITE_PATH, SQLITE_TABLE, SQLITE_EMBEDDING_MODEL_DIMS
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, etc.
//   - CHROMEM_PATH, CHROMEM_COLLECTION
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL
//   - LLM_API_KEY, LLM_MODEL, LLM_BASE_URL (enables the re-ranker)
//   - RETRIEVAL_WEIGHT, RETRIEVAL_TOP_K, RETRIEVAL_THRESHOLD
//   - WINDOW_CAPACITY
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "chromem")

	vectorIndexConfig := make(map[string]interface{})

	switch provider {
	case "sqlite":
		dims, _ := strconv.Atoi(getEnvOrDefault("SQLITE_EMBEDDING_MODEL_DIMS", "1536"))

		vectorIndexConfig = map[string]interface{}{
			"db_path":              getEnvOrDefault("SQLITE_PATH", "./debatemem.db"),
			"table_name":           getEnvOrDefault("SQLITE_TABLE", "debate_turns"),
			"embedding_model_dims": dims,
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		dims, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_EMBEDDING_MODEL_DIMS", "1536"))

		vectorIndexConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":                 port,
			"user":                 getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":             os.Getenv("POSTGRES_PASSWORD"),
			"db_name":              getEnvOrDefault("POSTGRES_DATABASE", "debatemem"),
			"table_name":           getEnvOrDefault("POSTGRES_TABLE", "debate_turns"),
			"embedding_model_dims": dims,
			"ssl_mode":             getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		dims, _ := strconv.Atoi(getEnvOrDefault("MYSQL_EMBEDDING_MODEL_DIMS", "1536"))

		vectorIndexConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("MYSQL_HOST", "localhost"),
			"port":                 port,
			"user":                 getEnvOrDefault("MYSQL_USER", "root"),
			"password":             os.Getenv("MYSQL_PASSWORD"),
			"db_name":              getEnvOrDefault("MYSQL_DATABASE", "debatemem"),
			"table_name":           getEnvOrDefault("MYSQL_TABLE", "debate_turns"),
			"embedding_model_dims": dims,
		}
	case "chromem":
		dims, _ := strconv.Atoi(getEnvOrDefault("CHROMEM_EMBEDDING_MODEL_DIMS", "1536"))

		vectorIndexConfig = map[string]interface{}{
			"path":                 os.Getenv("CHROMEM_PATH"),
			"collection":           getEnvOrDefault("CHROMEM_COLLECTION", "debate_turns"),
			"embedding_model_dims": dims,
		}
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderModel := getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))

	weight, _ := strconv.ParseFloat(getEnvOrDefault("RETRIEVAL_WEIGHT", "0.7"), 64)
	topK, _ := strconv.Atoi(getEnvOrDefault("RETRIEVAL_TOP_K", "5"))
	threshold, _ := strconv.ParseFloat(getEnvOrDefault("RETRIEVAL_THRESHOLD", "0"), 64)
	capacity, _ := strconv.Atoi(getEnvOrDefault("WINDOW_CAPACITY", "10"))

	config := &Config{
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		VectorIndex: VectorIndexConfig{
			Provider: provider,
			Config:   vectorIndexConfig,
		},
		Retrieval: RetrievalConfig{
			Weight:    weight,
			TopK:      topK,
			Threshold: threshold,
		},
		Window: WindowConfig{
			Capacity: capacity,
		},
	}

	// LLM configuration is optional; setting an API key enables the
	// re-ranker.
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM = &LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:   apiKey,
			Model:    getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		}
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that required providers are set and that retrieval parameters are
// in range before any I/O happens.
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Embedder.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.VectorIndex.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Retrieval.Weight < 0 || c.Retrieval.Weight > 1 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
