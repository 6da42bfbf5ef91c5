package flat

import (
	"container/heap"
	"math"
	"slices"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// MinCosine is the score given to a zero-norm vector under cosine similarity.
const MinCosine = -1.0

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Scorer compares stored vectors against one query.
type Scorer struct {
	metric domain.Metric
	query  []float32
	qnorm  float64
}

// NewScorer prepares a scorer for query under metric.
func NewScorer(metric domain.Metric, query []float32) Scorer {
	return Scorer{metric: metric, query: query, qnorm: Norm(query)}
}

// Score returns the cosine similarity or euclidean distance between the
// query and v. norm must be Norm(v).
func (s Scorer) Score(v []float32, norm float64) float64 {
	if s.metric == domain.MetricEuclidean {
		var sum float64
		for i, x := range v {
			d := float64(x) - float64(s.query[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	if norm == 0 || s.qnorm == 0 {
		return MinCosine
	}
	var dot float64
	for i, x := range v {
		dot += float64(x) * float64(s.query[i])
	}
	sim := dot / (norm * s.qnorm)
	// rounding can push parallel vectors slightly outside [-1, 1]
	return math.Max(MinCosine, math.Min(1, sim))
}

// Better reports whether a ranks before b: higher similarity (or lower
// distance) first, then lower id.
func Better(metric domain.Metric, a, b driven.VectorHit) bool {
	if a.Score != b.Score {
		if metric.HigherIsBetter() {
			return a.Score > b.Score
		}
		return a.Score < b.Score
	}
	return a.Record.ID < b.Record.ID
}

// TopK keeps the best k hits seen so far.
type TopK struct {
	h hitHeap
	k int
}

// NewTopK creates a collector for k hits.
func NewTopK(metric domain.Metric, k int) *TopK {
	return &TopK{k: k, h: hitHeap{metric: metric, hits: make([]driven.VectorHit, 0, k)}}
}

// Offer considers a record with its score. The record is only copied when kept.
func (t *TopK) Offer(rec *domain.EmbeddingRecord, score float64) {
	hit := driven.VectorHit{Record: domain.EmbeddingRecord{ID: rec.ID}, Score: score}
	if t.h.Len() < t.k {
		hit.Record = rec.Clone()
		heap.Push(&t.h, hit)
		return
	}
	if Better(t.h.metric, hit, t.h.hits[0]) {
		hit.Record = rec.Clone()
		t.h.hits[0] = hit
		heap.Fix(&t.h, 0)
	}
}

// Results returns the kept hits, best first.
func (t *TopK) Results() []driven.VectorHit {
	out := slices.Clone(t.h.hits)
	slices.SortFunc(out, func(a, b driven.VectorHit) int {
		if Better(t.h.metric, a, b) {
			return -1
		}
		if Better(t.h.metric, b, a) {
			return 1
		}
		return 0
	})
	return out
}

// hitHeap keeps the worst kept hit at the root.
type hitHeap struct {
	metric domain.Metric
	hits   []driven.VectorHit
}

func (h hitHeap) Len() int           { return len(h.hits) }
func (h hitHeap) Less(i, j int) bool { return Better(h.metric, h.hits[j], h.hits[i]) }
func (h hitHeap) Swap(i, j int)      { h.hits[i], h.hits[j] = h.hits[j], h.hits[i] }

func (h *hitHeap) Push(x any) {
	h.hits = append(h.hits, x.(driven.VectorHit))
}

func (h *hitHeap) Pop() any {
	last := h.hits[len(h.hits)-1]
	h.hits = h.hits[:len(h.hits)-1]
	return last
}
