// Package cached decorates an EmbeddingService with an EmbeddingCache.
//
// Keys are a highwayhash of the model name and the text, so switching
// models never serves stale vectors. Cache failures are logged and
// bypassed; embedding failures are returned and never cached.
package cached

import (
	"context"
	"encoding/hex"

	"github.com/minio/highwayhash"

	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

var keySeed = []byte("ragkit-embedding-cache-key-seed!")

// EmbeddingService serves embeddings from a cache and embeds only misses.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache driven.EmbeddingCache
}

// New wraps inner with cache.
func New(inner driven.EmbeddingService, cache driven.EmbeddingCache) *EmbeddingService {
	return &EmbeddingService{inner: inner, cache: cache}
}

// Key returns the cache key for text under model.
func Key(model, text string) string {
	h, _ := highwayhash.New128(keySeed)
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the cached vector for text or embeds and stores it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch looks up every text and embeds the misses in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model := s.inner.ModelName()
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		keys[i] = Key(model, text)
		vector, ok, err := s.cache.Get(ctx, keys[i])
		if err != nil {
			logger.Warn("embedding cache get failed: %v", err)
		}
		if ok {
			out[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	logger.Debug("embedding cache: %d hits, %d misses", len(texts)-len(missTexts), len(missTexts))
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		if err := s.cache.Put(ctx, keys[i], vectors[j]); err != nil {
			logger.Warn("embedding cache put failed: %v", err)
		}
	}
	return out, nil
}

// Dimensions returns the wrapped service's dimensions.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the cache and the wrapped service.
func (s *EmbeddingService) Close() error {
	cacheErr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}
