// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int

	// Dimensions is the expected vector size. Zero learns it from the
	// first response.
	Dimensions int
}

// EmbeddingService embeds text through /api/embed.
type EmbeddingService struct {
	api   *httpapi.Client
	model string

	mu         sync.RWMutex
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &EmbeddingService{
		api: httpapi.New(httpapi.Options{
			Provider: "ollama",
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Retries:  cfg.Retries,
		}),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single request, returning vectors in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp embedResponse
	if err := s.api.Post(ctx, "/api/embed", embedRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	if err := s.learnDimensions(resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// learnDimensions fixes the vector size on first use and rejects drift.
func (s *EmbeddingService) learnDimensions(vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if s.dimensions == 0 {
			s.dimensions = len(v)
		}
		if len(v) != s.dimensions {
			return fmt.Errorf("ollama: %d-dimensional vector, expected %d", len(v), s.dimensions)
		}
	}
	return nil
}

// Dimensions returns the vector size, or 0 before the first call when it
// was not configured.
func (s *EmbeddingService) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// ModelName returns the model tag.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks that the daemon answers /api/tags without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/api/tags", nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}
