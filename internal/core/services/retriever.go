package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.RetrievalService = (*Retriever)(nil)

var tracer = otel.Tracer("github.com/custodia-labs/ragkit/internal/core/services")

// Retriever applies the query policy (default k, score threshold) over a
// vector index.
type Retriever struct {
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	cfg      domain.PipelineConfig
}

// NewRetriever creates a retriever. cfg supplies the default k, the metric
// and the optional score threshold.
func NewRetriever(index driven.VectorIndex, embedder driven.EmbeddingService, cfg domain.PipelineConfig) *Retriever {
	return &Retriever{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Retrieve embeds question and returns the best matching segments.
func (r *Retriever) Retrieve(
	ctx context.Context, question string, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "retriever.Retrieve")
	defer span.End()

	logger.Section("Retrieval")

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	k, err := r.resolveK(opts.K)
	if err != nil {
		return nil, err
	}
	if r.index.Len() == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, domain.ErrEmbeddingUnavailable)
	}

	logger.Debug("Embedding question with %s", r.embedder.ModelName())
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
	}

	opts.K = k
	return r.RetrieveVector(ctx, vector, opts)
}

// RetrieveVector searches with an already embedded question.
func (r *Retriever) RetrieveVector(
	ctx context.Context, vector []float32, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	k, err := r.resolveK(opts.K)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	threshold := r.cfg.MinScore
	if opts.MinScore != nil {
		threshold = opts.MinScore
	}
	higherIsBetter := r.index.Metric().HigherIsBetter()

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if threshold != nil {
			if higherIsBetter && h.Score < *threshold {
				continue
			}
			if !higherIsBetter && h.Score > *threshold {
				continue
			}
		}
		results = append(results, domain.RetrievalResult{
			ID:         h.Record.ID,
			DocumentID: h.Record.DocumentID,
			Text:       h.Record.Text,
			Start:      h.Record.Start,
			End:        h.Record.End,
			Score:      h.Score,
		})
	}

	logger.Debug("Search returned %d hits, %d after threshold", len(hits), len(results))
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("retriever.k", k),
		attribute.Int("retriever.results", len(results)),
	)

	return results, nil
}

func (r *Retriever) resolveK(k int) (int, error) {
	if k < 0 {
		return 0, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidK, k)
	}
	if k == 0 {
		return r.cfg.TopK, nil
	}
	return k, nil
}
