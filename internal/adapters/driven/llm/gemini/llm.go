// Package gemini provides an LLM service adapter for Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultLLMModel is the model used when none is configured.
const DefaultLLMModel = "gemini-2.0-flash"

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("gemini: circuit open")

var tracer = otel.Tracer("github.com/custodia-labs/ragkit/internal/adapters/driven/llm/gemini")

// LLMConfig holds configuration for the Gemini LLM service.
type LLMConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the generative model (default: gemini-2.0-flash).
	Model string
}

// LLMService generates answers with the Gemini API behind a circuit breaker.
type LLMService struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewLLMService creates a Gemini LLM service.
func NewLLMService(ctx context.Context, cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &LLMService{
		client: client,
		model:  cfg.Model,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gemini-llm",
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}, nil
}

// Generate produces a completion for prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", s.model),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	result, err := s.breaker.Execute(func() (any, error) {
		model := s.client.GenerativeModel(s.model)
		model.SetTemperature(float32(opts.Temperature))
		if opts.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(opts.MaxTokens))
		}
		if len(opts.StopWords) > 0 {
			model.StopSequences = opts.StopWords
		}
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		return "", fmt.Errorf("gemini: %w", err)
	}

	return responseText(result.(*genai.GenerateContentResponse)), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches the model metadata to validate the key and model name.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.GenerativeModel(s.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *LLMService) Close() error {
	return s.client.Close()
}
