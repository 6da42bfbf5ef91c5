// Package flat provides an exact vector index that scores every stored record.
// It implements the driven.VectorIndex interface.
package flat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("flat: index is closed")

// Index stores records in insertion order and answers exact k-NN queries.
// Inserts hold the write lock; searches share the read lock.
type Index struct {
	mu        sync.RWMutex
	metric    domain.Metric
	dimension int
	records   []domain.EmbeddingRecord
	norms     []float64
	documents map[string]int
	nextID    int64
	closed    bool
}

// New creates an empty index for metric.
func New(metric domain.Metric) (*Index, error) {
	if !metric.IsValid() {
		return nil, fmt.Errorf("%w: unknown similarity metric %q", domain.ErrInvalidConfiguration, metric)
	}
	return &Index{
		metric:    metric,
		documents: make(map[string]int),
		nextID:    1,
	}, nil
}

// InsertBatch validates every record before inserting any of them.
func (idx *Index) InsertBatch(ctx context.Context, records []domain.RecordInput) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil, ErrClosed
	}

	dim := idx.dimension
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
	}
	for i := range records {
		if len(records[i].Vector) != dim {
			return nil, fmt.Errorf("%w: record %d has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, i, len(records[i].Vector), dim)
		}
		if !finite(records[i].Vector) {
			return nil, fmt.Errorf("%w: record %d contains NaN or Inf", domain.ErrInvalidInput, i)
		}
	}

	idx.dimension = dim
	ids := make([]int64, len(records))
	for i := range records {
		rec := domain.EmbeddingRecord{
			ID:         idx.nextID,
			Vector:     append([]float32(nil), records[i].Vector...),
			DocumentID: records[i].DocumentID,
			Start:      records[i].Start,
			End:        records[i].End,
			Text:       records[i].Text,
		}
		idx.nextID++
		idx.records = append(idx.records, rec)
		idx.norms = append(idx.norms, Norm(rec.Vector))
		idx.documents[rec.DocumentID]++
		ids[i] = rec.ID
	}

	return ids, nil
}

// Search scores every record against query.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkQuery(query, k); err != nil {
		return nil, err
	}

	scorer := NewScorer(idx.metric, query)
	top := NewTopK(idx.metric, min(k, len(idx.records)))
	for i := range idx.records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		top.Offer(&idx.records[i], scorer.Score(idx.records[i].Vector, idx.norms[i]))
	}
	return top.Results(), nil
}

// SearchPositions scores only the records at the given positions.
// Positions are indexes in insertion order; out of range positions are ignored.
func (idx *Index) SearchPositions(
	ctx context.Context,
	query []float32,
	k int,
	positions []int,
) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkQuery(query, k); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scorer := NewScorer(idx.metric, query)
	top := NewTopK(idx.metric, min(k, len(idx.records)))
	for _, pos := range positions {
		if pos < 0 || pos >= len(idx.records) {
			continue
		}
		top.Offer(&idx.records[pos], scorer.Score(idx.records[pos].Vector, idx.norms[pos]))
	}
	return top.Results(), nil
}

func (idx *Index) checkQuery(query []float32, k int) error {
	if idx.closed {
		return ErrClosed
	}
	if len(idx.records) == 0 {
		return domain.ErrEmptyIndex
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidK, k)
	}
	if len(query) != idx.dimension {
		return fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.dimension)
	}
	return nil
}

// Vectors calls fn for every stored vector in insertion order.
// fn must not retain or modify the slice beyond the call.
func (idx *Index) Vectors(fn func(pos int, vector []float32)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for i := range idx.records {
		fn(i, idx.records[i].Vector)
	}
}

// Len returns the number of stored records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Documents returns the number of distinct documents with stored records.
func (idx *Index) Documents() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.documents)
}

// Dimension returns the fixed vector length, or 0 before the first insert.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Metric returns the similarity metric.
func (idx *Index) Metric() domain.Metric {
	return idx.metric
}

// Snapshot returns a deep copy of all records and the header.
func (idx *Index) Snapshot() domain.IndexSnapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	records := make([]domain.EmbeddingRecord, len(idx.records))
	for i := range idx.records {
		records[i] = idx.records[i].Clone()
	}
	return domain.IndexSnapshot{
		Header: domain.IndexHeader{
			Dimension:   idx.dimension,
			Metric:      idx.metric,
			RecordCount: len(records),
		},
		Records: records,
	}
}

// Restore replaces the index contents with snapshot.
func (idx *Index) Restore(snapshot domain.IndexSnapshot) error {
	if err := snapshot.Validate(idx.metric); err != nil {
		return err
	}

	records := make([]domain.EmbeddingRecord, len(snapshot.Records))
	norms := make([]float64, len(snapshot.Records))
	documents := make(map[string]int)
	nextID := int64(1)
	for i := range snapshot.Records {
		records[i] = snapshot.Records[i].Clone()
		norms[i] = Norm(records[i].Vector)
		documents[records[i].DocumentID]++
		nextID = records[i].ID + 1
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	idx.dimension = snapshot.Header.Dimension
	if len(records) == 0 {
		idx.dimension = 0
	}
	idx.records = records
	idx.norms = norms
	idx.documents = documents
	idx.nextID = nextID
	return nil
}

// Close releases the stored records.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.closed = true
	idx.records = nil
	idx.norms = nil
	idx.documents = nil
	return nil
}

func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
