// Package redis provides an embedding cache stored in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/bintly"

	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// KeyPrefix namespaces cache entries.
const KeyPrefix = "ragkit:emb:"

// Cache stores vectors as binary values with an optional TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to url, which is either a redis:// URL or host:port.
// A zero ttl keeps entries until evicted by Redis.
func New(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	var opts *redis.Options
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached vector for key.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vector, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// Put stores vector under key.
func (c *Cache) Put(ctx context.Context, key string, vector []float32) error {
	if err := c.client.Set(ctx, KeyPrefix+key, encodeVector(vector), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func encodeVector(vector []float32) []byte {
	writers := bintly.NewWriters()
	w := writers.Get()
	defer writers.Put(w)

	w.Int(len(vector))
	for _, x := range vector {
		w.Float32(x)
	}
	return append([]byte(nil), w.Bytes()...)
}

func decodeVector(data []byte) (vector []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vector = nil
			err = fmt.Errorf("malformed cached vector: %v", r)
		}
	}()

	readers := bintly.NewReaders()
	r := readers.Get()
	defer readers.Put(r)
	if err := r.FromBytes(data); err != nil {
		return nil, fmt.Errorf("malformed cached vector: %w", err)
	}

	var n int
	r.Int(&n)
	if n < 0 || n > len(data) {
		return nil, fmt.Errorf("malformed cached vector: length %d", n)
	}
	vector = make([]float32, n)
	for i := range vector {
		r.Float32(&vector[i])
	}
	return vector, nil
}
