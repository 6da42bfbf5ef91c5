package driven

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// DocumentSource supplies raw documents for indexing.
type DocumentSource interface {
	// SourceID returns the configured source identifier.
	SourceID() string

	// FullSync fetches all documents from the source.
	// Both channels are closed when the sync finishes.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch listens for real-time changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Close releases resources.
	Close() error
}
