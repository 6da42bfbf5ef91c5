package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Pipeline Errors.

	// ErrInvalidConfiguration indicates a bad chunk size, overlap, k, metric
	// or threshold. It is a caller error and is never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// fixed dimension of the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrMetricMismatch indicates a persisted index built with a different
	// similarity metric than the one configured.
	ErrMetricMismatch = errors.New("metric mismatch")

	// ErrEmptyIndex indicates a search against an index with no records.
	ErrEmptyIndex = errors.New("empty index")

	// ErrInvalidK indicates a non-positive result count.
	ErrInvalidK = errors.New("invalid k")

	// ErrIndexCorrupt indicates a persisted index failed validation.
	ErrIndexCorrupt = errors.New("index corrupt")

	// Collaborator Errors.

	// ErrEmbeddingFailure indicates the embedding collaborator failed.
	// It is surfaced as-is and never retried by the core.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrGenerationFailure indicates the generation collaborator failed.
	ErrGenerationFailure = errors.New("generation failure")
)
