// Package ivf provides an inverted-file approximate index layered over the
// exact flat index. Vectors are partitioned into lists around k-means
// centroids and a query scans only the lists nearest to it.
//
// The flat index remains the source of truth: snapshots, ids and scores
// come from it unchanged, so an untrained ivf index behaves exactly like
// a flat one.
package ivf

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/vectorindex/flat"
)

// Ensure Index implements the interfaces.
var (
	_ driven.VectorIndex = (*Index)(nil)
	_ driven.Trainable   = (*Index)(nil)
)

const (
	// MinPointsPerList is the smallest average list size worth training for.
	// Smaller indexes are searched exactly.
	MinPointsPerList = 8

	// DefaultSeed seeds k-means initialisation.
	DefaultSeed uint64 = 0x5eed

	maxIterations = 25
)

// Config configures the inverted-file structure.
type Config struct {
	// Lists is the number of partitions (nlist).
	Lists int

	// Probes is the number of partitions scanned per query (nprobe).
	Probes int

	// Seed makes training deterministic. Zero selects DefaultSeed.
	Seed uint64
}

// Index is an approximate vector index.
// Lock order is always Index.mu then the flat index lock.
type Index struct {
	mu     sync.RWMutex
	base   *flat.Index
	lists  int
	probes int
	seed   uint64

	trained   bool
	centroids [][]float64
	members   [][]int
}

// New creates an empty, untrained index.
func New(metric domain.Metric, cfg Config) (*Index, error) {
	if cfg.Lists <= 0 {
		return nil, fmt.Errorf("%w: ivf lists must be positive, got %d", domain.ErrInvalidConfiguration, cfg.Lists)
	}
	if cfg.Probes <= 0 {
		return nil, fmt.Errorf("%w: ivf probes must be positive, got %d", domain.ErrInvalidConfiguration, cfg.Probes)
	}
	base, err := flat.New(metric)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Index{
		base:   base,
		lists:  cfg.Lists,
		probes: min(cfg.Probes, cfg.Lists),
		seed:   seed,
	}, nil
}

// InsertBatch inserts into the flat index and, once trained, files the new
// records under their nearest centroid.
func (idx *Index) InsertBatch(ctx context.Context, records []domain.RecordInput) ([]int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids, err := idx.base.InsertBatch(ctx, records)
	if err != nil || !idx.trained {
		return ids, err
	}

	first := idx.base.Len() - len(ids)
	for i := range records {
		list := nearest(idx.centroids, idx.prepare(records[i].Vector))
		idx.members[list] = append(idx.members[list], first+i)
	}
	return ids, nil
}

// Search scans the nearest lists, widening past Probes until at least k
// candidates have been seen. Untrained indexes search exactly.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained || k <= 0 || len(query) != idx.base.Dimension() {
		return idx.base.Search(ctx, query, k)
	}

	q := idx.prepare(query)
	order := make([]int, len(idx.centroids))
	dist := make([]float64, len(idx.centroids))
	for i, c := range idx.centroids {
		order[i] = i
		dist[i] = squaredDistance(q, c)
	}
	slices.SortFunc(order, func(a, b int) int {
		if dist[a] != dist[b] {
			if dist[a] < dist[b] {
				return -1
			}
			return 1
		}
		return a - b
	})

	var positions []int
	for probed, list := range order {
		if probed >= idx.probes && len(positions) >= k {
			break
		}
		positions = append(positions, idx.members[list]...)
	}
	return idx.base.SearchPositions(ctx, query, k, positions)
}

// Train clusters all stored vectors. Indexes with fewer than
// Lists*MinPointsPerList records stay untrained.
func (idx *Index) Train(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.trained = false
	idx.centroids = nil
	idx.members = nil

	if idx.base.Len() < idx.lists*MinPointsPerList {
		return nil
	}

	var points [][]float64
	idx.base.Vectors(func(_ int, v []float32) {
		points = append(points, idx.prepare(v))
	})

	rng := rand.New(rand.NewPCG(idx.seed, idx.seed^0x9e3779b97f4a7c15))
	centroids := seedCentroids(rng, points, idx.lists)
	assign := make([]int, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed := 0
		for i, p := range points {
			c := nearest(centroids, p)
			if c != assign[i] || iter == 0 {
				changed++
			}
			assign[i] = c
		}
		idx.update(centroids, points, assign)
		if changed == 0 {
			break
		}
	}

	members := make([][]int, len(centroids))
	for i, p := range points {
		c := nearest(centroids, p)
		members[c] = append(members[c], i)
	}

	idx.centroids = centroids
	idx.members = members
	idx.trained = true
	return nil
}

// update moves each centroid to the mean of its points. Empty lists keep
// their previous centroid.
func (idx *Index) update(centroids, points [][]float64, assign []int) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, p := range points {
		c := assign[i]
		counts[c]++
		for j, x := range p {
			sums[c][j] += x
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		if idx.base.Metric() == domain.MetricCosine {
			normalize(sums[c])
		}
		centroids[c] = sums[c]
	}
}

// prepare converts v for clustering. Cosine vectors are normalised so that
// euclidean nearness matches angular nearness.
func (idx *Index) prepare(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	if idx.base.Metric() == domain.MetricCosine {
		normalize(out)
	}
	return out
}

// Trained reports whether searches use the inverted lists.
func (idx *Index) Trained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

// Lists returns the configured number of partitions.
func (idx *Index) Lists() int { return idx.lists }

// Probes returns the configured number of partitions scanned per query.
func (idx *Index) Probes() int { return idx.probes }

// Len returns the number of stored records.
func (idx *Index) Len() int { return idx.base.Len() }

// Documents returns the number of distinct documents with stored records.
func (idx *Index) Documents() int { return idx.base.Documents() }

// Dimension returns the fixed vector length, or 0 before the first insert.
func (idx *Index) Dimension() int { return idx.base.Dimension() }

// Metric returns the similarity metric.
func (idx *Index) Metric() domain.Metric { return idx.base.Metric() }

// Snapshot returns the records of the underlying flat index.
// The list structure is not part of the snapshot; call Train after Restore.
func (idx *Index) Snapshot() domain.IndexSnapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.base.Snapshot()
}

// Restore replaces the records and discards any training.
func (idx *Index) Restore(snapshot domain.IndexSnapshot) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.base.Restore(snapshot); err != nil {
		return err
	}
	idx.trained = false
	idx.centroids = nil
	idx.members = nil
	return nil
}

// Close releases the index.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.trained = false
	idx.centroids = nil
	idx.members = nil
	return idx.base.Close()
}

// seedCentroids picks k initial centroids with k-means++.
func seedCentroids(rng *rand.Rand, points [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, slices.Clone(points[rng.IntN(len(points))]))

	weights := make([]float64, len(points))
	for i, p := range points {
		weights[i] = squaredDistance(p, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, w := range weights {
			total += w
		}

		pick := rng.IntN(len(points))
		if total > 0 {
			target := rng.Float64() * total
			for i, w := range weights {
				target -= w
				if target <= 0 {
					pick = i
					break
				}
			}
		}

		c := slices.Clone(points[pick])
		centroids = append(centroids, c)
		for i, p := range points {
			weights[i] = math.Min(weights[i], squaredDistance(p, c))
		}
	}
	return centroids
}

func nearest(centroids [][]float64, p []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] /= n
	}
}
