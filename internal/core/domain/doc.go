// Package domain defines the core business entities for ragkit.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A normalised unit of ingested text
//   - Chunk: A contiguous, offset-addressed span of a document
//   - EmbeddingRecord: A chunk payload paired with its vector
//   - IndexSnapshot: The persisted form of a vector index
//   - RetrievalResult: A scored record returned for a question
//   - PipelineConfig: The explicit knobs threaded through build and query
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
