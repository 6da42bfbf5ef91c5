package driving

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// IndexService builds, persists and reloads the vector index.
type IndexService interface {
	// Build chunks, embeds and inserts the documents.
	Build(ctx context.Context, docs []domain.Document) (*domain.BuildReport, error)

	// IndexSource drains a document source, normalises and builds.
	IndexSource(ctx context.Context, source driven.DocumentSource) (*domain.BuildReport, error)

	// Watch indexes changes from a source until ctx is cancelled.
	Watch(ctx context.Context, source driven.DocumentSource) error

	// Save persists the index atomically.
	Save(ctx context.Context) error

	// Load replaces the in-memory index with the persisted one.
	Load(ctx context.Context) error

	// Stats describes the current index.
	Stats() domain.IndexStats
}
