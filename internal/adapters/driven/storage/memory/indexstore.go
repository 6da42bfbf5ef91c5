package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore keeps the last saved snapshot in memory.
type IndexStore struct {
	mu       sync.RWMutex
	snapshot *domain.IndexSnapshot
}

// NewIndexStore creates an empty in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Save stores a deep copy of snapshot.
func (s *IndexStore) Save(ctx context.Context, snapshot domain.IndexSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := cloneSnapshot(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &c
	return nil
}

// Load returns a copy of the saved snapshot.
func (s *IndexStore) Load(_ context.Context) (*domain.IndexSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, domain.ErrNotFound
	}
	c := cloneSnapshot(*s.snapshot)
	return &c, nil
}

// Exists reports whether a snapshot has been saved.
func (s *IndexStore) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil, nil
}

// Location returns ":memory:".
func (s *IndexStore) Location() string {
	return ":memory:"
}

// Close discards the saved snapshot.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	return nil
}

func cloneSnapshot(in domain.IndexSnapshot) domain.IndexSnapshot {
	out := domain.IndexSnapshot{Header: in.Header, Records: make([]domain.EmbeddingRecord, len(in.Records))}
	for i := range in.Records {
		out.Records[i] = in.Records[i].Clone()
	}
	return out
}
