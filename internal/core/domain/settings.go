package domain

import (
	"fmt"
	"math"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI and Gemini).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI and Gemini).
	APIKey string

	// MaxTokens caps the generated answer length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness of the answer.
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IndexBackend selects where a vector index is persisted.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendFile stores the index as a single checksummed binary file.
	IndexBackendFile IndexBackend = "file"

	// IndexBackendSQLite stores the index in a SQLite database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendMemory keeps the saved index in process memory only.
	IndexBackendMemory IndexBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendFile, IndexBackendSQLite, IndexBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// IndexSettings holds vector index storage and search structure configuration.
type IndexSettings struct {
	// Backend selects the persistence format.
	Backend IndexBackend

	// Path is the index file or database location. Empty uses the data directory.
	Path string

	// Approximate enables the inverted-file search structure.
	Approximate bool

	// Lists is the number of inverted-file partitions.
	Lists int

	// Probes is the number of partitions visited per query.
	Probes int
}

// CacheBackend selects the embedding cache implementation.
type CacheBackend string

// Available cache backends.
const (
	// CacheBackendNone disables embedding caching.
	CacheBackendNone CacheBackend = "none"

	// CacheBackendMemory keeps a bounded in-process LRU cache.
	CacheBackendMemory CacheBackend = "memory"

	// CacheBackendRedis stores embeddings in Redis.
	CacheBackendRedis CacheBackend = "redis"
)

// IsValid returns true if the cache backend is recognised.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheBackendNone, CacheBackendMemory, CacheBackendRedis:
		return true
	default:
		return false
	}
}

// CacheSettings holds embedding cache configuration.
type CacheSettings struct {
	Backend CacheBackend

	// Size is the maximum number of entries for the memory backend.
	Size int

	// RedisURL is the connection URL for the redis backend.
	RedisURL string

	// TTLSeconds is the entry lifetime for the redis backend. Zero keeps entries forever.
	TTLSeconds int
}

// BuildSettings holds index build concurrency configuration.
type BuildSettings struct {
	// Workers is the number of documents chunked and embedded in parallel.
	Workers int

	// BatchSize is the number of chunk texts per embedding call.
	BatchSize int

	// EmbedRateLimit caps embedding calls per second. Zero means unlimited.
	EmbedRateLimit float64

	// AllOrNothing aborts the whole build on the first embedding failure.
	AllOrNothing bool
}

// PipelineConfig is the configuration surface consumed by the core.
// It is passed explicitly to the chunker, index and retriever.
type PipelineConfig struct {
	// ChunkSize is the window length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int

	// TopK is the default number of retrieved segments.
	TopK int

	// Metric is the similarity metric of the index.
	Metric Metric

	// MinScore drops results scoring worse than the threshold when set.
	MinScore *float64
}

// Validate checks the configuration values.
func (c PipelineConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, %d), got %d",
			ErrInvalidConfiguration, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfiguration, c.TopK)
	}
	if !c.Metric.IsValid() {
		return fmt.Errorf("%w: unknown similarity metric %q", ErrInvalidConfiguration, c.Metric)
	}
	if c.MinScore != nil && (math.IsNaN(*c.MinScore) || math.IsInf(*c.MinScore, 0)) {
		return fmt.Errorf("%w: min_score_threshold must be finite", ErrInvalidConfiguration)
	}
	return nil
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         5,
		Metric:       MetricCosine,
	}
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Pipeline holds chunking and retrieval settings.
	Pipeline PipelineConfig

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Index holds vector index settings.
	Index IndexSettings

	// Cache holds embedding cache settings.
	Cache CacheSettings

	// Build holds index build settings.
	Build BuildSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embedding and LLM default to a local Ollama instance.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Pipeline: DefaultPipelineConfig(),
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultLLMModels()[AIProviderOllama],
			Temperature: 0.1,
		},
		Index: IndexSettings{
			Backend: IndexBackendFile,
			Lists:   64,
			Probes:  8,
		},
		Cache: CacheSettings{
			Backend: CacheBackendMemory,
			Size:    4096,
		},
		Build: BuildSettings{
			BatchSize: 32,
		},
	}
}

// AllProviders returns providers that support both embeddings and generation.
func AllProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderGemini: "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
