package domain

import (
	"fmt"
	"strings"
	"time"
)

// Metric identifies the similarity function of a vector index.
// It is fixed for the lifetime of one index and persisted in its header.
type Metric string

// Supported similarity metrics.
const (
	// MetricCosine scores by cosine similarity; higher is better.
	MetricCosine Metric = "cosine"

	// MetricEuclidean scores by Euclidean distance; lower is better.
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric converts a configuration string into a Metric.
// An empty string selects cosine.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricCosine, nil
	case MetricCosine, MetricEuclidean:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", ErrInvalidConfiguration, s)
	}
}

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	return m == MetricCosine || m == MetricEuclidean
}

// HigherIsBetter reports whether larger scores rank first.
func (m Metric) HigherIsBetter() bool {
	return m != MetricEuclidean
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// RecordInput is an embedding record before the index assigns its id.
type RecordInput struct {
	Vector     []float32
	DocumentID string
	Start      int
	End        int
	Text       string
}

// EmbeddingRecord pairs a chunk's vector with its payload.
// Records are owned by the vector index and never mutated after insertion.
type EmbeddingRecord struct {
	// ID is assigned by the index, monotonically increasing from 1.
	ID int64

	// Vector has exactly the index dimension.
	Vector []float32

	// DocumentID identifies the source document.
	DocumentID string

	// Start and End are the character offsets of the chunk in the document.
	Start int
	End   int

	// Text is the chunk text.
	Text string
}

// Clone returns a deep copy of the record.
func (r EmbeddingRecord) Clone() EmbeddingRecord {
	out := r
	out.Vector = append([]float32(nil), r.Vector...)
	return out
}

// IndexHeader describes a persisted vector index.
type IndexHeader struct {
	Dimension   int
	Metric      Metric
	RecordCount int

	// BuildID identifies the build pass that produced the index.
	BuildID string

	CreatedAt time.Time
}

// IndexSnapshot is the complete, serialisable state of a vector index.
type IndexSnapshot struct {
	Header  IndexHeader
	Records []EmbeddingRecord
}

// Validate checks the snapshot is internally consistent and was built
// with the expected metric. An empty expected metric skips the metric check.
func (s *IndexSnapshot) Validate(expected Metric) error {
	if !s.Header.Metric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", ErrIndexCorrupt, s.Header.Metric)
	}
	if expected != "" && s.Header.Metric != expected {
		return fmt.Errorf("%w: index built with %s, configured %s",
			ErrMetricMismatch, s.Header.Metric, expected)
	}
	if s.Header.RecordCount != len(s.Records) {
		return fmt.Errorf("%w: header declares %d records, found %d",
			ErrIndexCorrupt, s.Header.RecordCount, len(s.Records))
	}
	var last int64
	for i := range s.Records {
		if len(s.Records[i].Vector) != s.Header.Dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, header declares %d",
				ErrDimensionMismatch, s.Records[i].ID, len(s.Records[i].Vector), s.Header.Dimension)
		}
		if s.Records[i].ID <= last {
			return fmt.Errorf("%w: record ids not strictly increasing at %d", ErrIndexCorrupt, s.Records[i].ID)
		}
		last = s.Records[i].ID
	}
	return nil
}

// IndexStats summarises the in-memory index.
type IndexStats struct {
	Dimension   int    `json:"dimension"`
	Metric      Metric `json:"metric"`
	RecordCount int    `json:"record_count"`
	Documents   int    `json:"documents"`
	BuildID     string `json:"build_id,omitempty"`
	Approximate bool   `json:"approximate"`
	Location    string `json:"location,omitempty"`
}
