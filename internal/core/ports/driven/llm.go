package driven

import "context"

// LLMService generates text from a prompt.
// Generation may be non-deterministic across calls. Failures are returned
// to the caller; services wrap them with domain.ErrGenerationFailure.
type LLMService interface {
	// Generate produces text completion for the given prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation.
type GenerateOptions struct {
	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation.
	StopWords []string
}
