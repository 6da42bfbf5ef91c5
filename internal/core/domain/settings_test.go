package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAIProvider_IsValid tests all valid and invalid AI providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{name: "ollama is valid", provider: AIProviderOllama, expected: true},
		{name: "openai is valid", provider: AIProviderOpenAI, expected: true},
		{name: "gemini is valid", provider: AIProviderGemini, expected: true},
		{name: "empty string is invalid", provider: AIProvider(""), expected: false},
		{name: "unknown provider is invalid", provider: AIProvider("unknown"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

// TestAIProvider_RequiresAPIKey tests API key requirements
func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderGemini.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProviderGemini.IsLocal())
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, "Google Gemini (cloud)", AIProviderGemini.Description())
	assert.Equal(t, unknownDescription, AIProvider("nope").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{name: "empty", settings: EmbeddingSettings{}, expected: false},
		{name: "ollama without key", settings: EmbeddingSettings{Provider: AIProviderOllama}, expected: true},
		{name: "openai without key", settings: EmbeddingSettings{Provider: AIProviderOpenAI}, expected: false},
		{name: "gemini with key", settings: EmbeddingSettings{Provider: AIProviderGemini, APIKey: "k"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
}

func TestBackends_IsValid(t *testing.T) {
	assert.True(t, IndexBackendFile.IsValid())
	assert.True(t, IndexBackendSQLite.IsValid())
	assert.True(t, IndexBackendMemory.IsValid())
	assert.False(t, IndexBackend("postgres").IsValid())

	assert.True(t, CacheBackendNone.IsValid())
	assert.True(t, CacheBackendMemory.IsValid())
	assert.True(t, CacheBackendRedis.IsValid())
	assert.False(t, CacheBackend("memcached").IsValid())
}

func TestPipelineConfig_Validate(t *testing.T) {
	threshold := 0.5
	nan := math.NaN()

	tests := []struct {
		name    string
		mutate  func(c *PipelineConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*PipelineConfig) {}},
		{name: "zero overlap is valid", mutate: func(c *PipelineConfig) { c.ChunkOverlap = 0 }},
		{name: "threshold is valid", mutate: func(c *PipelineConfig) { c.MinScore = &threshold }},
		{name: "euclidean is valid", mutate: func(c *PipelineConfig) { c.Metric = MetricEuclidean }},
		{name: "zero chunk size", mutate: func(c *PipelineConfig) { c.ChunkSize = 0 }, wantErr: true},
		{name: "negative chunk size", mutate: func(c *PipelineConfig) { c.ChunkSize = -5 }, wantErr: true},
		{name: "negative overlap", mutate: func(c *PipelineConfig) { c.ChunkOverlap = -1 }, wantErr: true},
		{name: "overlap equal to size", mutate: func(c *PipelineConfig) { c.ChunkOverlap = c.ChunkSize }, wantErr: true},
		{name: "zero top k", mutate: func(c *PipelineConfig) { c.TopK = 0 }, wantErr: true},
		{name: "unknown metric", mutate: func(c *PipelineConfig) { c.Metric = "manhattan" }, wantErr: true},
		{name: "nan threshold", mutate: func(c *PipelineConfig) { c.MinScore = &nan }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfiguration))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultAppSettings(t *testing.T) {
	settings := DefaultAppSettings()

	assert.Equal(t, 1000, settings.Pipeline.ChunkSize)
	assert.Equal(t, 200, settings.Pipeline.ChunkOverlap)
	assert.Equal(t, 5, settings.Pipeline.TopK)
	assert.Equal(t, MetricCosine, settings.Pipeline.Metric)
	assert.Nil(t, settings.Pipeline.MinScore)
	assert.NoError(t, settings.Pipeline.Validate())

	assert.Equal(t, AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, IndexBackendFile, settings.Index.Backend)
	assert.Equal(t, CacheBackendMemory, settings.Cache.Backend)
	assert.Equal(t, 32, settings.Build.BatchSize)
}

func TestDefaultModels_CoverAllProviders(t *testing.T) {
	embed := DefaultEmbeddingModels()
	llm := DefaultLLMModels()
	dims := EmbeddingDimensions()

	for _, p := range AllProviders() {
		assert.NotEmpty(t, embed[p], "embedding model for %s", p)
		assert.NotEmpty(t, llm[p], "llm model for %s", p)
		assert.Positive(t, dims[embed[p]], "dimensions for %s", embed[p])
	}
}
