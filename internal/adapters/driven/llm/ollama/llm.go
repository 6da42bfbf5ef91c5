// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Retries int
}

// LLMService generates answers through /api/generate without streaming.
type LLMService struct {
	api   *httpapi.Client
	model string
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options samplingOptions `json:"options"`
}

// Temperature is always sent so that zero selects greedy decoding.
type samplingOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api: httpapi.New(httpapi.Options{
			Provider: "ollama",
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Retries:  cfg.Retries,
		}),
		model: cfg.Model,
	}
}

// Generate runs the model once over prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Options: samplingOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.StopWords,
		},
	}

	var resp generateResponse
	if err := s.api.Post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.New("ollama error: " + resp.Error)
	}
	return resp.Response, nil
}

// ModelName returns the model tag.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks that the daemon answers /api/tags.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/api/tags", nil)
}

// Close releases idle connections.
func (s *LLMService) Close() error {
	s.api.Close()
	return nil
}
