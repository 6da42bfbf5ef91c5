// Package ai provides factory functions that assemble the pipeline's driven
// adapters from application settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	memorycache "github.com/custodia-labs/ragkit/internal/adapters/driven/cache/memory"
	rediscache "github.com/custodia-labs/ragkit/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/cached"
	geminiembed "github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/openai"
	geminillm "github.com/custodia-labs/ragkit/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/ragkit/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragkit/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
	"github.com/custodia-labs/ragkit/internal/vectorindex/flat"
	"github.com/custodia-labs/ragkit/internal/vectorindex/ivf"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

const settingsHint = "Run 'ragkit settings list' to review the configuration"

// InitResult contains the adapters assembled from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VectorIndex      driven.VectorIndex
	IndexStore       driven.IndexStore
	Warnings         []string // Non-fatal issues that left a collaborator unset.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.IndexStore != nil {
		r.IndexStore.Close()
	}
}

// Init builds every adapter the pipeline needs.
//
// The index and its store are required and any error is returned. The
// embedding and LLM services are optional: failures are recorded as warnings
// and the service is left nil so callers can degrade.
func Init(ctx context.Context, settings *domain.AppSettings, dataDir string) (*InitResult, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no settings", domain.ErrInvalidConfiguration)
	}

	result := &InitResult{}

	index, err := CreateVectorIndex(settings.Pipeline.Metric, settings.Index)
	if err != nil {
		return nil, err
	}
	result.VectorIndex = index

	store, err := CreateIndexStore(settings.Index, dataDir)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.IndexStore = store

	embedder, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else if embedder != nil {
		cache, err := CreateEmbeddingCache(ctx, settings.Cache)
		switch {
		case err != nil:
			result.Warnings = append(result.Warnings, fmt.Sprintf("embedding cache disabled: %v", err))
			result.EmbeddingService = embedder
		case cache != nil:
			result.EmbeddingService = cached.New(embedder, cache)
		default:
			result.EmbeddingService = embedder
		}
	}

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.LLMService = llm

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, settingsHint)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrEmbeddingUnavailable, err, settingsHint)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, settingsHint)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrLLMUnavailable, err, settingsHint)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service selected by settings.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no embedding settings", domain.ErrInvalidConfiguration)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the LLM service selected by settings.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no LLM settings", domain.ErrInvalidConfiguration)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.LLMConfig{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateEmbeddingCache creates the embedding cache selected by settings.
// Returns nil for the none backend.
func CreateEmbeddingCache(ctx context.Context, settings domain.CacheSettings) (driven.EmbeddingCache, error) {
	switch settings.Backend {
	case domain.CacheBackendNone, "":
		return nil, nil

	case domain.CacheBackendMemory:
		return memorycache.New(settings.Size), nil

	case domain.CacheBackendRedis:
		if settings.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis cache needs cache.redis_url", domain.ErrInvalidConfiguration)
		}
		ttl := time.Duration(settings.TTLSeconds) * time.Second
		return rediscache.New(ctx, settings.RedisURL, ttl)

	default:
		return nil, fmt.Errorf("%w: cache backend %q", domain.ErrUnsupportedType, settings.Backend)
	}
}

// CreateVectorIndex creates an exact or approximate index for metric.
func CreateVectorIndex(metric domain.Metric, settings domain.IndexSettings) (driven.VectorIndex, error) {
	if settings.Approximate {
		return ivf.New(metric, ivf.Config{Lists: settings.Lists, Probes: settings.Probes})
	}
	return flat.New(metric)
}

// CreateIndexStore creates the index store selected by settings.
// An empty path places the index inside dataDir.
func CreateIndexStore(settings domain.IndexSettings, dataDir string) (driven.IndexStore, error) {
	path := func(name string) string {
		if settings.Path != "" {
			return settings.Path
		}
		if dataDir == "" {
			return ""
		}
		return filepath.Join(dataDir, name)
	}

	switch settings.Backend {
	case domain.IndexBackendFile, "":
		return file.NewStore(path(file.DefaultFileName))
	case domain.IndexBackendSQLite:
		return sqlite.NewStore(path(sqlite.DefaultFileName))
	case domain.IndexBackendMemory:
		return memory.NewIndexStore(), nil
	default:
		return nil, fmt.Errorf("%w: index backend %q", domain.ErrUnsupportedType, settings.Backend)
	}
}

// ValidateEmbeddingConfig creates an embedding service and pings it.
// An unconfigured provider is reported as domain.ErrEmbeddingUnavailable.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return fmt.Errorf("%w: provider not configured", domain.ErrEmbeddingUnavailable)
	}
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// ValidateLLMConfig creates an LLM service and pings it.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return fmt.Errorf("%w: provider not configured", domain.ErrLLMUnavailable)
	}
	svc, err := CreateAndValidateLLMService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// IsUnavailable reports whether err means a collaborator could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrLLMUnavailable)
}

// ProviderChecker pings configured providers. It satisfies the CLI's
// settings check.
type ProviderChecker struct{}

// CheckEmbedding validates the embedding provider.
func (ProviderChecker) CheckEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(ctx, settings)
}

// CheckLLM validates the LLM provider.
func (ProviderChecker) CheckLLM(ctx context.Context, settings *domain.LLMSettings) error {
	return ValidateLLMConfig(ctx, settings)
}
