package flat

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

func newIndex(t *testing.T, metric domain.Metric) *Index {
	t.Helper()
	idx, err := New(metric)
	require.NoError(t, err)
	return idx
}

func inputs(vectors ...[]float32) []domain.RecordInput {
	out := make([]domain.RecordInput, len(vectors))
	for i, v := range vectors {
		out[i] = domain.RecordInput{Vector: v, DocumentID: "doc", Start: i, End: i + 1, Text: string(rune('a' + i))}
	}
	return out
}

func ids(hits []driven.VectorHit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.Record.ID
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("valid metrics", func(t *testing.T) {
		for _, m := range []domain.Metric{domain.MetricCosine, domain.MetricEuclidean} {
			idx, err := New(m)
			require.NoError(t, err)
			assert.Equal(t, m, idx.Metric())
			assert.Equal(t, 0, idx.Len())
			assert.Equal(t, 0, idx.Dimension())
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		idx, err := New("dot")
		assert.Nil(t, idx)
		assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
	})
}

func TestInsertBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("first record fixes dimension and ids increase", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)

		first, err := idx.InsertBatch(ctx, inputs([]float32{1, 0, 0}, []float32{0, 1, 0}))
		require.NoError(t, err)
		second, err := idx.InsertBatch(ctx, inputs([]float32{0, 0, 1}))
		require.NoError(t, err)

		assert.Equal(t, []int64{1, 2}, first)
		assert.Equal(t, []int64{3}, second)
		assert.Equal(t, 3, idx.Dimension())
		assert.Equal(t, 3, idx.Len())
	})

	t.Run("mismatch in batch inserts nothing", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{1, 0}))
		require.NoError(t, err)

		_, err = idx.InsertBatch(ctx, inputs([]float32{1, 1}, []float32{1, 2, 3}, []float32{0, 1}))

		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
		assert.Equal(t, 1, idx.Len())

		next, err := idx.InsertBatch(ctx, inputs([]float32{0, 1}))
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, next, "failed batch must not consume ids")
	})

	t.Run("mismatch within first batch", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{1, 0}, []float32{1}))
		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, 0, idx.Dimension())
	})

	t.Run("empty vector rejected", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{}))
		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	})

	t.Run("non finite rejected", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{float32(math.NaN()), 1}))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		got, err := idx.InsertBatch(ctx, nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("cancelled context", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := idx.InsertBatch(cctx, inputs([]float32{1}))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("input vectors are copied", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		v := []float32{1, 0}
		_, err := idx.InsertBatch(ctx, inputs(v))
		require.NoError(t, err)
		v[0] = 0

		snap := idx.Snapshot()
		assert.Equal(t, float32(1), snap.Records[0].Vector[0])
	})
}

func TestSearch_CosineScenario(t *testing.T) {
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(context.Background(), inputs([]float32{1, 0}, []float32{0, 1}, []float32{0.9, 0.1}))
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, []float32{1, 0}, hits[0].Record.Vector)
	assert.Equal(t, []float32{0.9, 0.1}, hits[1].Record.Vector)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty index regardless of k", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		for _, k := range []int{-1, 0, 1, 10} {
			_, err := idx.Search(ctx, []float32{1, 0}, k)
			assert.True(t, errors.Is(err, domain.ErrEmptyIndex), "k=%d", k)
		}
	})

	t.Run("invalid k", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{1, 0}))
		require.NoError(t, err)

		for _, k := range []int{0, -3} {
			_, err := idx.Search(ctx, []float32{1, 0}, k)
			assert.True(t, errors.Is(err, domain.ErrInvalidK))
		}
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		_, err := idx.InsertBatch(ctx, inputs([]float32{1, 0}))
		require.NoError(t, err)

		_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	})

	t.Run("closed index", func(t *testing.T) {
		idx := newIndex(t, domain.MetricCosine)
		require.NoError(t, idx.Close())
		_, err := idx.Search(ctx, []float32{1}, 1)
		assert.ErrorIs(t, err, ErrClosed)
		_, err = idx.InsertBatch(ctx, inputs([]float32{1}))
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestSearch_TiesPreferLowerID(t *testing.T) {
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(context.Background(), inputs(
		[]float32{0, 1},
		[]float32{2, 0},
		[]float32{1, 0},
		[]float32{3, 0},
	))
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)

	// records 2, 3 and 4 all have similarity 1
	assert.Equal(t, []int64{2, 3, 4}, ids(hits))
}

func TestSearch_ZeroNormScoresMinimum(t *testing.T) {
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(context.Background(), inputs(
		[]float32{0, 0},
		[]float32{-1, 0},
		[]float32{1, 0},
	))
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1, 2}, ids(hits))
	assert.Equal(t, MinCosine, hits[1].Score)
	assert.Equal(t, MinCosine, hits[2].Score)

	t.Run("zero query", func(t *testing.T) {
		hits, err := idx.Search(context.Background(), []float32{0, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids(hits))
		for _, h := range hits {
			assert.Equal(t, MinCosine, h.Score)
		}
	})
}

func TestSearch_Euclidean(t *testing.T) {
	idx := newIndex(t, domain.MetricEuclidean)
	_, err := idx.InsertBatch(context.Background(), inputs(
		[]float32{10, 10},
		[]float32{1, 1},
		[]float32{0, 0},
		[]float32{3, 4},
	))
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float32{0, 0}, 3)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2, 4}, ids(hits))
	assert.InDelta(t, 0, hits[0].Score, 1e-9)
	assert.InDelta(t, math.Sqrt2, hits[1].Score, 1e-6)
	assert.InDelta(t, 5, hits[2].Score, 1e-6)
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func TestSearch_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ctx := context.Background()

	for _, metric := range []domain.Metric{domain.MetricCosine, domain.MetricEuclidean} {
		t.Run(metric.String(), func(t *testing.T) {
			idx := newIndex(t, metric)
			vectors := randomVectors(rng, 300, 8)
			_, err := idx.InsertBatch(ctx, inputs(vectors...))
			require.NoError(t, err)

			for q := 0; q < 20; q++ {
				query := randomVectors(rng, 1, 8)[0]
				k := 1 + rng.IntN(20)

				hits, err := idx.Search(ctx, query, k)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(hits), k)

				for i := 1; i < len(hits); i++ {
					if metric.HigherIsBetter() {
						assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
					} else {
						assert.LessOrEqual(t, hits[i-1].Score, hits[i].Score)
					}
				}
				for _, h := range hits {
					require.GreaterOrEqual(t, h.Record.ID, int64(1))
					require.LessOrEqual(t, h.Record.ID, int64(len(vectors)))
					assert.Equal(t, vectors[h.Record.ID-1], h.Record.Vector)
				}

				again, err := idx.Search(ctx, query, k)
				require.NoError(t, err)
				assert.Equal(t, hits, again, "search is idempotent")
			}
		})
	}
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(context.Background(), inputs([]float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), []float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchPositions(t *testing.T) {
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(context.Background(), inputs([]float32{1, 0}, []float32{0, 1}, []float32{0.9, 0.1}))
	require.NoError(t, err)

	hits, err := idx.SearchPositions(context.Background(), []float32{1, 0}, 2, []int{1, 2, 99, -1})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(hits))
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t, domain.MetricEuclidean)
	_, err := idx.InsertBatch(ctx, []domain.RecordInput{
		{Vector: []float32{1, 2}, DocumentID: "a", Start: 0, End: 5, Text: "hello"},
		{Vector: []float32{3, 4}, DocumentID: "b", Start: 3, End: 9, Text: "lo wor"},
	})
	require.NoError(t, err)

	snap := idx.Snapshot()
	assert.Equal(t, 2, snap.Header.Dimension)
	assert.Equal(t, domain.MetricEuclidean, snap.Header.Metric)
	assert.Equal(t, 2, snap.Header.RecordCount)

	t.Run("round trip", func(t *testing.T) {
		restored := newIndex(t, domain.MetricEuclidean)
		require.NoError(t, restored.Restore(snap))

		assert.Equal(t, snap, restored.Snapshot())
		assert.Equal(t, 2, restored.Documents())

		next, err := restored.InsertBatch(ctx, inputs([]float32{5, 6}))
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, next)
	})

	t.Run("metric mismatch", func(t *testing.T) {
		other := newIndex(t, domain.MetricCosine)
		err := other.Restore(snap)
		assert.True(t, errors.Is(err, domain.ErrMetricMismatch))
		assert.Equal(t, 0, other.Len())
	})

	t.Run("snapshot is a deep copy", func(t *testing.T) {
		s := idx.Snapshot()
		s.Records[0].Vector[0] = 100
		assert.Equal(t, float32(1), idx.Snapshot().Records[0].Vector[0])
	})
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t, domain.MetricCosine)
	_, err := idx.InsertBatch(ctx, inputs([]float32{1, 0, 0, 0}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 50; i++ {
				_, err := idx.InsertBatch(ctx, inputs(randomVectors(rng, 3, 4)...))
				assert.NoError(t, err)
			}
		}(uint64(w))
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
				assert.NoError(t, err)
				for _, h := range hits {
					assert.Len(t, h.Record.Vector, 4)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1+4*50*3, idx.Len())
	snap := idx.Snapshot()
	require.NoError(t, snap.Validate(domain.MetricCosine))
}
