package services

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize      = "chunking.size"
	keyChunkOverlap   = "chunking.overlap"
	keyTopK           = "retrieval.top_k"
	keyMetric         = "retrieval.metric"
	keyMinScore       = "retrieval.min_score"
	keyIndexBackend   = "index.backend"
	keyIndexPath      = "index.path"
	keyIndexApprox    = "index.approximate"
	keyIndexLists     = "index.ivf_lists"
	keyIndexProbes    = "index.ivf_probes"
	keyBuildWorkers   = "build.workers"
	keyBuildBatch     = "build.batch_size"
	keyBuildRate      = "build.embed_rate_limit"
	keyBuildAll       = "build.all_or_nothing"
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyCacheBackend   = "cache.backend"
	keyCacheSize      = "cache.size"
	keyCacheRedisURL  = "cache.redis_url"
	keyCacheTTL       = "cache.ttl_seconds"
)

// Environment variables that override stored secrets.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvEmbeddingAPIKey = "RAGKIT_EMBEDDING_API_KEY"
	EnvLLMAPIKey       = "RAGKIT_LLM_API_KEY"
	EnvRedisURL        = "RAGKIT_REDIS_URL"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKinds lists every recognised key and how its value is parsed.
var settingKinds = map[string]valueKind{
	keyChunkSize:      kindInt,
	keyChunkOverlap:   kindInt,
	keyTopK:           kindInt,
	keyMetric:         kindString,
	keyMinScore:       kindFloat,
	keyIndexBackend:   kindString,
	keyIndexPath:      kindString,
	keyIndexApprox:    kindBool,
	keyIndexLists:     kindInt,
	keyIndexProbes:    kindInt,
	keyBuildWorkers:   kindInt,
	keyBuildBatch:     kindInt,
	keyBuildRate:      kindFloat,
	keyBuildAll:       kindBool,
	keyEmbedProvider:  kindString,
	keyEmbedModel:     kindString,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keyLLMProvider:    kindString,
	keyLLMModel:       kindString,
	keyLLMBaseURL:     kindString,
	keyLLMAPIKey:      kindString,
	keyLLMMaxTokens:   kindInt,
	keyLLMTemperature: kindFloat,
	keyCacheBackend:   kindString,
	keyCacheSize:      kindInt,
	keyCacheRedisURL:  kindString,
	keyCacheTTL:       kindInt,
}

// SettingsService maps dotted config keys to domain.AppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings, applying defaults for
// missing keys and environment overrides for secrets.
// Returns domain.ErrInvalidConfiguration if stored values are invalid.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	metric, err := domain.ParseMetric(s.configStore.GetString(keyMetric))
	if err != nil {
		return nil, err
	}

	settings := &domain.AppSettings{
		Pipeline: domain.PipelineConfig{
			ChunkSize:    s.getInt(keyChunkSize, defaults.Pipeline.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, defaults.Pipeline.ChunkOverlap),
			TopK:         s.getInt(keyTopK, defaults.Pipeline.TopK),
			Metric:       metric,
			MinScore:     s.getFloatPtr(keyMinScore),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // empty is valid for cloud providers
			APIKey:   s.secret(EnvEmbeddingAPIKey, keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.secret(EnvLLMAPIKey, keyLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
		},
		Index: domain.IndexSettings{
			Backend:     domain.IndexBackend(s.getString(keyIndexBackend, defaults.Index.Backend.String())),
			Path:        s.configStore.GetString(keyIndexPath),
			Approximate: s.getBool(keyIndexApprox, defaults.Index.Approximate),
			Lists:       s.getInt(keyIndexLists, defaults.Index.Lists),
			Probes:      s.getInt(keyIndexProbes, defaults.Index.Probes),
		},
		Cache: domain.CacheSettings{
			Backend:    domain.CacheBackend(s.getString(keyCacheBackend, string(defaults.Cache.Backend))),
			Size:       s.getInt(keyCacheSize, defaults.Cache.Size),
			RedisURL:   s.secret(EnvRedisURL, keyCacheRedisURL),
			TTLSeconds: s.getInt(keyCacheTTL, defaults.Cache.TTLSeconds),
		},
		Build: domain.BuildSettings{
			Workers:        s.getInt(keyBuildWorkers, defaults.Build.Workers),
			BatchSize:      s.getInt(keyBuildBatch, defaults.Build.BatchSize),
			EmbedRateLimit: s.getFloat(keyBuildRate, defaults.Build.EmbedRateLimit),
			AllOrNothing:   s.getBool(keyBuildAll, defaults.Build.AllOrNothing),
		},
	}

	// models default per provider, so a provider switch picks a matching model
	settings.Embedding.Model = s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel, domain.DefaultLLMModels()[settings.LLM.Provider])

	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}

	values := map[string]any{
		keyChunkSize:      settings.Pipeline.ChunkSize,
		keyChunkOverlap:   settings.Pipeline.ChunkOverlap,
		keyTopK:           settings.Pipeline.TopK,
		keyMetric:         settings.Pipeline.Metric.String(),
		keyEmbedProvider:  settings.Embedding.Provider.String(),
		keyEmbedModel:     settings.Embedding.Model,
		keyEmbedBaseURL:   settings.Embedding.BaseURL,
		keyLLMProvider:    settings.LLM.Provider.String(),
		keyLLMModel:       settings.LLM.Model,
		keyLLMBaseURL:     settings.LLM.BaseURL,
		keyLLMMaxTokens:   settings.LLM.MaxTokens,
		keyLLMTemperature: settings.LLM.Temperature,
		keyIndexBackend:   settings.Index.Backend.String(),
		keyIndexPath:      settings.Index.Path,
		keyIndexApprox:    settings.Index.Approximate,
		keyIndexLists:     settings.Index.Lists,
		keyIndexProbes:    settings.Index.Probes,
		keyCacheBackend:   string(settings.Cache.Backend),
		keyCacheSize:      settings.Cache.Size,
		keyCacheTTL:       settings.Cache.TTLSeconds,
		keyBuildWorkers:   settings.Build.Workers,
		keyBuildBatch:     settings.Build.BatchSize,
		keyBuildRate:      settings.Build.EmbedRateLimit,
		keyBuildAll:       settings.Build.AllOrNothing,
	}
	for key, value := range values {
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	// secrets are only written when set, so env-only keys stay out of the file
	secrets := map[string]string{
		keyEmbedAPIKey:   settings.Embedding.APIKey,
		keyLLMAPIKey:     settings.LLM.APIKey,
		keyCacheRedisURL: settings.Cache.RedisURL,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if settings.Pipeline.MinScore != nil {
		if err := s.configStore.Set(keyMinScore, *settings.Pipeline.MinScore); err != nil {
			return fmt.Errorf("save %s: %w", keyMinScore, err)
		}
	} else if err := s.configStore.Unset(keyMinScore); err != nil {
		return fmt.Errorf("clear %s: %w", keyMinScore, err)
	}

	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Set parses value for key, validates the resulting settings and persists
// them. An empty value removes the key so its default applies.
// The stored configuration is left unchanged if validation fails.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	previous, had := s.configStore.Get(key)

	value = strings.TrimSpace(value)
	if value == "" {
		if err := s.configStore.Unset(key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	} else {
		parsed, err := parseValue(kind, value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfiguration, key, err)
		}
		if err := s.configStore.Set(key, parsed); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	if _, err := s.Get(); err != nil {
		s.restore(key, previous, had)
		return err
	}

	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Keys returns all recognised setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the effective value of key as a display string.
// Secrets are masked.
func (s *SettingsService) Value(key string) (string, error) {
	if _, ok := settingKinds[key]; !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}
	return displayValue(settings, key), nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) restore(key string, previous any, had bool) {
	if had {
		_ = s.configStore.Set(key, previous)
		return
	}
	_ = s.configStore.Unset(key)
}

func validateSettings(settings *domain.AppSettings) error {
	if err := settings.Pipeline.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfiguration, settings.Embedding.Provider)
	}
	if !settings.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidConfiguration, settings.LLM.Provider)
	}
	if !settings.Index.Backend.IsValid() {
		return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidConfiguration, settings.Index.Backend)
	}
	if settings.Index.Lists <= 0 || settings.Index.Probes <= 0 {
		return fmt.Errorf("%w: ivf lists and probes must be positive", domain.ErrInvalidConfiguration)
	}
	if !settings.Cache.Backend.IsValid() {
		return fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidConfiguration, settings.Cache.Backend)
	}
	if settings.Build.Workers < 0 || settings.Build.BatchSize < 0 || settings.Build.EmbedRateLimit < 0 {
		return fmt.Errorf("%w: build settings must not be negative", domain.ErrInvalidConfiguration)
	}
	return nil
}

func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("value must be finite")
		}
		return f, nil
	case kindBool:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}

func displayValue(settings *domain.AppSettings, key string) string {
	switch key {
	case keyChunkSize:
		return strconv.Itoa(settings.Pipeline.ChunkSize)
	case keyChunkOverlap:
		return strconv.Itoa(settings.Pipeline.ChunkOverlap)
	case keyTopK:
		return strconv.Itoa(settings.Pipeline.TopK)
	case keyMetric:
		return settings.Pipeline.Metric.String()
	case keyMinScore:
		if settings.Pipeline.MinScore == nil {
			return ""
		}
		return strconv.FormatFloat(*settings.Pipeline.MinScore, 'g', -1, 64)
	case keyIndexBackend:
		return settings.Index.Backend.String()
	case keyIndexPath:
		return settings.Index.Path
	case keyIndexApprox:
		return strconv.FormatBool(settings.Index.Approximate)
	case keyIndexLists:
		return strconv.Itoa(settings.Index.Lists)
	case keyIndexProbes:
		return strconv.Itoa(settings.Index.Probes)
	case keyBuildWorkers:
		return strconv.Itoa(settings.Build.Workers)
	case keyBuildBatch:
		return strconv.Itoa(settings.Build.BatchSize)
	case keyBuildRate:
		return strconv.FormatFloat(settings.Build.EmbedRateLimit, 'g', -1, 64)
	case keyBuildAll:
		return strconv.FormatBool(settings.Build.AllOrNothing)
	case keyEmbedProvider:
		return settings.Embedding.Provider.String()
	case keyEmbedModel:
		return settings.Embedding.Model
	case keyEmbedBaseURL:
		return settings.Embedding.BaseURL
	case keyEmbedAPIKey:
		return mask(settings.Embedding.APIKey)
	case keyLLMProvider:
		return settings.LLM.Provider.String()
	case keyLLMModel:
		return settings.LLM.Model
	case keyLLMBaseURL:
		return settings.LLM.BaseURL
	case keyLLMAPIKey:
		return mask(settings.LLM.APIKey)
	case keyLLMMaxTokens:
		return strconv.Itoa(settings.LLM.MaxTokens)
	case keyLLMTemperature:
		return strconv.FormatFloat(settings.LLM.Temperature, 'g', -1, 64)
	case keyCacheBackend:
		return string(settings.Cache.Backend)
	case keyCacheSize:
		return strconv.Itoa(settings.Cache.Size)
	case keyCacheRedisURL:
		return mask(settings.Cache.RedisURL)
	case keyCacheTTL:
		return strconv.Itoa(settings.Cache.TTLSeconds)
	default:
		return ""
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getFloatPtr(key string) *float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return nil
	}
	v := s.configStore.GetFloat(key)
	return &v
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return domain.AIProvider(val)
}

// secret prefers the environment variable over the stored value.
func (s *SettingsService) secret(env, key string) string {
	if v := s.getenv(env); v != "" {
		return v
	}
	return s.configStore.GetString(key)
}
