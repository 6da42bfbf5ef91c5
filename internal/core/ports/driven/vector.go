package driven

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// VectorIndex stores embedding records and answers k-nearest-neighbour queries.
//
// Implementations serialise inserts against searches so a search never
// observes a partially inserted batch. Searches may run concurrently.
type VectorIndex interface {
	// InsertBatch appends records and returns their assigned ids.
	// The first record inserted into an empty index fixes the dimension.
	// Any vector of the wrong length fails the whole batch with
	// domain.ErrDimensionMismatch and nothing is inserted.
	InsertBatch(ctx context.Context, records []domain.RecordInput) ([]int64, error)

	// Search returns at most k hits ordered best first, ties broken by lower id.
	// Returns domain.ErrInvalidK if k <= 0 and domain.ErrEmptyIndex if empty.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored records.
	Len() int

	// Dimension returns the fixed vector length, or 0 for an empty index.
	Dimension() int

	// Metric returns the similarity metric.
	Metric() domain.Metric

	// Snapshot returns a deep copy of the index state for persistence.
	Snapshot() domain.IndexSnapshot

	// Restore replaces the index state with a previously saved snapshot.
	// Returns domain.ErrMetricMismatch if the snapshot metric differs.
	Restore(snapshot domain.IndexSnapshot) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a search result from the vector index.
type VectorHit struct {
	// Record is the matched record.
	Record domain.EmbeddingRecord

	// Score is a similarity for cosine indexes and a distance for euclidean ones.
	Score float64
}

// Trainable is implemented by approximate indexes that build a search
// structure over the stored vectors after a build pass.
type Trainable interface {
	Train(ctx context.Context) error
}

// IndexStore persists index snapshots.
// Save must be atomic: a failure never corrupts a previously saved index.
type IndexStore interface {
	// Save writes the snapshot, replacing any previous one.
	Save(ctx context.Context, snapshot domain.IndexSnapshot) error

	// Load reads the saved snapshot.
	// Returns domain.ErrNotFound if nothing has been saved.
	Load(ctx context.Context) (*domain.IndexSnapshot, error)

	// Exists reports whether a snapshot has been saved.
	Exists(ctx context.Context) (bool, error)

	// Location returns a human-readable description of where data lives.
	Location() string

	// Close releases resources.
	Close() error
}
