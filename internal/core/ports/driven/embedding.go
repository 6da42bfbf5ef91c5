// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations must be deterministic for identical text within one
// model version. Failures are returned to the caller and never retried by
// the core; services wrap them with domain.ErrEmbeddingFailure.
//
// Implementations include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Gemini (text-embedding-004)
//   - A caching decorator over any of the above
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the expected embedding vector size (e.g., 384, 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingCache stores embeddings keyed by an opaque content hash.
type EmbeddingCache interface {
	// Get returns the cached vector and true, or false on a miss.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Put stores a vector under key.
	Put(ctx context.Context, key string, vector []float32) error

	// Close releases resources.
	Close() error
}
