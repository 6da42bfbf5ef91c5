package driven

import "github.com/custodia-labs/ragkit/internal/core/domain"

// Chunker splits a document into ordered, overlapping chunks.
// Implementations are deterministic and free of side effects.
type Chunker interface {
	// Chunk splits the document content.
	// A document with empty content yields no chunks.
	Chunk(doc domain.Document) ([]domain.Chunk, error)

	// Size returns the configured window size in characters.
	Size() int

	// Overlap returns the configured overlap in characters.
	Overlap() int
}
