// Package openai provides an embedding service adapter for the OpenAI
// embeddings API and compatible endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	APIKey  string // required
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int

	// Dimensions shortens text-embedding-3-* vectors. Zero keeps the model size.
	Dimensions int
}

// EmbeddingService embeds text through /embeddings.
type EmbeddingService struct {
	api        *httpapi.Client
	model      string
	dimensions int
	shorten    bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	svc := &EmbeddingService{
		api: httpapi.New(httpapi.Options{
			Provider: "openai",
			BaseURL:  cfg.BaseURL,
			Header:   http.Header{"Authorization": []string{"Bearer " + cfg.APIKey}},
			Timeout:  cfg.Timeout,
			Retries:  cfg.Retries,
		}),
		model: cfg.Model,
	}
	svc.shorten = cfg.Dimensions > 0 && strings.HasPrefix(cfg.Model, "text-embedding-3-")
	if svc.shorten {
		svc.dimensions = cfg.Dimensions
	} else {
		svc.dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	return svc, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. The API may list vectors out of
// order; they are returned in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{Model: s.model, Input: texts}
	if s.shorten {
		req.Dimensions = s.dimensions
	}
	var resp embeddingResponse
	if err := s.api.Post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range for %d inputs", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai: no embedding for input %d", i)
		}
		if s.shorten && len(v) != s.dimensions {
			return nil, fmt.Errorf("openai: %d-dimensional vector for input %d, expected %d", len(v), i, s.dimensions)
		}
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size, or 0 for an unknown model.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/models", nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}
