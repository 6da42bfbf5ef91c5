// Package gemini provides an embedding service adapter for Google Gemini.
//
// Calls run through a circuit breaker: after repeated failures the adapter
// fails fast with ErrCircuitOpen until the breaker half-opens again.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// MaxBatch is the largest number of texts sent in one batch request.
const MaxBatch = 100

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("gemini: circuit open")

var tracer = otel.Tracer("github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/gemini")

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model (default: text-embedding-004).
	Model string
}

// EmbeddingService generates embeddings with the Gemini API.
type EmbeddingService struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewEmbeddingService creates a Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &EmbeddingService{
		client:  client,
		model:   cfg.Model,
		breaker: newBreaker("gemini-embedding"),
	}, nil
}

// newBreaker trips after at least three calls in a ten second window of
// which 60% failed, and probes again after thirty seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts with BatchEmbedContents, MaxBatch texts per request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", s.model),
		attribute.Int("gemini.texts", len(texts)),
	)

	out := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += MaxBatch {
		hi := min(lo+MaxBatch, len(texts))
		vectors, err := s.embedChunk(ctx, texts[lo:hi])
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := execute(s.breaker, func() (any, error) {
		em := s.client.EmbeddingModel(s.model)
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}
		return em.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini returned no embedding for input %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// execute runs fn through the breaker and maps a rejected call to ErrCircuitOpen.
func execute(cb *gobreaker.CircuitBreaker, fn func() (any, error)) (any, error) {
	result, err := cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return result, nil
}

// Dimensions returns the vector size of known models, or 0.
func (s *EmbeddingService) Dimensions() int {
	return domain.EmbeddingDimensions()[s.model]
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short text to validate the key and model.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *EmbeddingService) Close() error {
	return s.client.Close()
}
