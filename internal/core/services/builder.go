package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure IndexBuilder implements the interface.
var _ driving.IndexService = (*IndexBuilder)(nil)

// DefaultBatchSize is the number of chunk texts per embedding call.
const DefaultBatchSize = 32

// IndexBuilder chunks and embeds documents in parallel and inserts the
// results through a single writer.
type IndexBuilder struct {
	index       driven.VectorIndex
	store       driven.IndexStore
	embedder    driven.EmbeddingService
	chunker     driven.Chunker
	normalisers driven.NormaliserRegistry
	settings    domain.BuildSettings
	limiter     *rate.Limiter

	// buildMu serialises builds and loads.
	buildMu sync.Mutex

	mu      sync.RWMutex
	buildID string
	builtAt time.Time
}

// NewIndexBuilder creates a builder. The normalisers parameter is optional
// and only needed by IndexSource and Watch.
func NewIndexBuilder(
	index driven.VectorIndex,
	store driven.IndexStore,
	embedder driven.EmbeddingService,
	chunker driven.Chunker,
	normalisers driven.NormaliserRegistry,
	settings domain.BuildSettings,
) *IndexBuilder {
	b := &IndexBuilder{
		index:       index,
		store:       store,
		embedder:    embedder,
		chunker:     chunker,
		normalisers: normalisers,
		settings:    settings,
	}
	if settings.EmbedRateLimit > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(settings.EmbedRateLimit), 1)
	}
	return b
}

// docResult is the outcome of chunking and embedding one document.
type docResult struct {
	doc     domain.Document
	records []domain.RecordInput
	chunks  int
	failed  int
	err     error
}

// Build chunks, embeds and inserts docs. Each document's records are
// inserted as one batch. With AllOrNothing set, every record of the build
// is inserted in a single batch after all documents succeed.
func (b *IndexBuilder) Build(ctx context.Context, docs []domain.Document) (*domain.BuildReport, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	ctx, span := tracer.Start(ctx, "builder.Build")
	defer span.End()

	if b.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, domain.ErrEmbeddingUnavailable)
	}

	logger.Section("Index Build")
	start := time.Now()
	report := &domain.BuildReport{
		BuildID:  uuid.NewString(),
		Failures: make(map[string]string),
	}
	logger.Debug("Build %s: %d documents, %d workers", report.BuildID, len(docs), b.workers(len(docs)))

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan domain.Document)
	results := make(chan docResult)

	var wg sync.WaitGroup
	for i := 0; i < b.workers(len(docs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				results <- b.process(workCtx, doc)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-workCtx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var abort error
	var pending []domain.RecordInput
	pendingDocs := 0

	// results is always drained so workers never block
	for res := range results {
		if abort != nil || ctx.Err() != nil {
			continue
		}
		report.Chunks += res.chunks
		report.FailedChunks += res.failed

		if res.err != nil {
			report.Failures[res.doc.ID] = res.err.Error()
			logger.Warn("Document %s: %v", res.doc.ID, res.err)
			if b.settings.AllOrNothing {
				abort = fmt.Errorf("document %s: %w", res.doc.ID, res.err)
				cancel()
				continue
			}
		}
		if len(res.records) == 0 {
			report.Skipped++
			continue
		}

		if b.settings.AllOrNothing {
			pending = append(pending, res.records...)
			pendingDocs++
			continue
		}

		ids, err := b.index.InsertBatch(ctx, res.records)
		if err != nil {
			abort = fmt.Errorf("insert document %s: %w", res.doc.ID, err)
			cancel()
			continue
		}
		report.Records += len(ids)
		report.Documents++
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("Build %s cancelled", report.BuildID)
		return nil, err
	}
	if abort != nil {
		span.RecordError(abort)
		return nil, abort
	}

	if len(pending) > 0 {
		ids, err := b.index.InsertBatch(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("insert build %s: %w", report.BuildID, err)
		}
		report.Records += len(ids)
		report.Documents += pendingDocs
	}

	if t, ok := b.index.(driven.Trainable); ok && b.index.Len() > 0 {
		logger.Debug("Training approximate index over %d records", b.index.Len())
		if err := t.Train(ctx); err != nil {
			return nil, fmt.Errorf("train index: %w", err)
		}
	}

	b.mu.Lock()
	b.buildID = report.BuildID
	b.builtAt = time.Now().UTC()
	b.mu.Unlock()

	report.Duration = time.Since(start)
	if len(report.Failures) == 0 {
		report.Failures = nil
	}
	span.SetAttributes(
		attribute.Int("build.documents", report.Documents),
		attribute.Int("build.records", report.Records),
		attribute.Int("build.skipped", report.Skipped),
	)
	logger.Info("Build %s: %d documents, %d records, %d skipped in %s",
		report.BuildID, report.Documents, report.Records, report.Skipped, report.Duration)

	return report, nil
}

// process chunks doc and embeds its chunks in sub-batches. A failed
// sub-batch drops only its chunks unless AllOrNothing is set.
func (b *IndexBuilder) process(ctx context.Context, doc domain.Document) docResult {
	res := docResult{doc: doc}
	if strings.TrimSpace(doc.Content) == "" {
		return res
	}

	chunks, err := b.chunker.Chunk(doc)
	if err != nil {
		res.err = fmt.Errorf("chunk: %w", err)
		return res
	}
	res.chunks = len(chunks)

	size := b.batchSize()
	for lo := 0; lo < len(chunks); lo += size {
		hi := min(lo+size, len(chunks))

		if err := b.wait(ctx); err != nil {
			res.err = err
			res.records = nil
			return res
		}

		texts := make([]string, hi-lo)
		for i := range texts {
			texts[i] = chunks[lo+i].Text
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		if err != nil {
			if ctx.Err() != nil {
				res.err = ctx.Err()
				res.records = nil
				return res
			}
			res.failed += hi - lo
			if res.err == nil {
				res.err = fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
			}
			if b.settings.AllOrNothing {
				res.records = nil
				return res
			}
			continue
		}

		for i, v := range vectors {
			c := chunks[lo+i]
			res.records = append(res.records, domain.RecordInput{
				Vector:     v,
				DocumentID: doc.ID,
				Start:      c.Start,
				End:        c.End,
				Text:       c.Text,
			})
		}
	}
	return res
}

// wait checks for cancellation and paces embedding calls.
func (b *IndexBuilder) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

func (b *IndexBuilder) workers(docs int) int {
	n := b.settings.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, docs))
}

func (b *IndexBuilder) batchSize() int {
	if b.settings.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return b.settings.BatchSize
}

// IndexSource drains a full sync from source, normalises every raw
// document and builds. Documents with unsupported types are skipped.
func (b *IndexBuilder) IndexSource(ctx context.Context, source driven.DocumentSource) (*domain.BuildReport, error) {
	if b.normalisers == nil {
		return nil, fmt.Errorf("%w: no normalisers configured", domain.ErrInvalidConfiguration)
	}

	logger.Section("Source Sync")
	logger.Debug("Syncing source %s", source.SourceID())

	rawDocs, errs := source.FullSync(ctx)
	var docs []domain.Document
	var syncErrs []error
	unsupported := 0

	for rawDocs != nil || errs != nil {
		select {
		case raw, ok := <-rawDocs:
			if !ok {
				rawDocs = nil
				continue
			}
			doc, err := b.normalisers.Normalise(ctx, &raw)
			if err != nil {
				if errors.Is(err, domain.ErrUnsupportedType) {
					unsupported++
					logger.Debug("Skipping %s: unsupported type %s", raw.URI, raw.MIMEType)
					continue
				}
				logger.Warn("Normalising %s: %v", raw.URI, err)
				syncErrs = append(syncErrs, fmt.Errorf("normalise %s: %w", raw.URI, err))
				continue
			}
			docs = append(docs, *doc)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("Source %s: %v", source.SourceID(), err)
			syncErrs = append(syncErrs, err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	logger.Info("Source %s: %d documents, %d unsupported, %d errors",
		source.SourceID(), len(docs), unsupported, len(syncErrs))

	if len(docs) == 0 && len(syncErrs) > 0 {
		return nil, fmt.Errorf("sync source %s: %w", source.SourceID(), errors.Join(syncErrs...))
	}

	report, err := b.Build(ctx, docs)
	if err != nil {
		return nil, err
	}
	report.Skipped += unsupported
	return report, nil
}

// Watch indexes created and updated documents from source until ctx is
// cancelled, saving after each change. The index is append-only, so
// deletions are logged and ignored.
func (b *IndexBuilder) Watch(ctx context.Context, source driven.DocumentSource) error {
	if b.normalisers == nil {
		return fmt.Errorf("%w: no normalisers configured", domain.ErrInvalidConfiguration)
	}

	changes, err := source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch source %s: %w", source.SourceID(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := b.applyChange(ctx, change); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("Watch %s: %v", change.Document.URI, err)
			}
		}
	}
}

func (b *IndexBuilder) applyChange(ctx context.Context, change domain.RawDocumentChange) error {
	if change.Type == domain.ChangeDeleted {
		logger.Info("Ignoring deletion of %s; the index is append-only", change.Document.URI)
		return nil
	}

	doc, err := b.normalisers.Normalise(ctx, &change.Document)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			return nil
		}
		return fmt.Errorf("normalise: %w", err)
	}

	report, err := b.Build(ctx, []domain.Document{*doc})
	if err != nil {
		return err
	}
	logger.Info("Indexed %s %s: %d records", change.Type, change.Document.URI, report.Records)
	return b.Save(ctx)
}

// Save persists the index with the current build id.
func (b *IndexBuilder) Save(ctx context.Context) error {
	if b.store == nil {
		return fmt.Errorf("%w: no index store configured", domain.ErrInvalidConfiguration)
	}

	snapshot := b.index.Snapshot()
	b.mu.RLock()
	snapshot.Header.BuildID = b.buildID
	snapshot.Header.CreatedAt = b.builtAt
	b.mu.RUnlock()
	if snapshot.Header.CreatedAt.IsZero() {
		snapshot.Header.CreatedAt = time.Now().UTC()
	}

	if err := b.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	logger.Debug("Saved %d records to %s", len(snapshot.Records), b.store.Location())
	return nil
}

// Load replaces the in-memory index with the persisted one.
// Returns domain.ErrMetricMismatch if it was built with another metric.
func (b *IndexBuilder) Load(ctx context.Context) error {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	if b.store == nil {
		return fmt.Errorf("%w: no index store configured", domain.ErrInvalidConfiguration)
	}

	snapshot, err := b.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if err := snapshot.Validate(b.index.Metric()); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if err := b.index.Restore(*snapshot); err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	if t, ok := b.index.(driven.Trainable); ok {
		if err := t.Train(ctx); err != nil {
			return fmt.Errorf("train index: %w", err)
		}
	}

	b.mu.Lock()
	b.buildID = snapshot.Header.BuildID
	b.builtAt = snapshot.Header.CreatedAt
	b.mu.Unlock()

	logger.Debug("Loaded %d records from %s", len(snapshot.Records), b.store.Location())
	return nil
}

// Stats describes the current index.
func (b *IndexBuilder) Stats() domain.IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := domain.IndexStats{
		Dimension:   b.index.Dimension(),
		Metric:      b.index.Metric(),
		RecordCount: b.index.Len(),
		BuildID:     b.buildID,
	}
	if d, ok := b.index.(interface{ Documents() int }); ok {
		stats.Documents = d.Documents()
	}
	if _, ok := b.index.(driven.Trainable); ok {
		stats.Approximate = true
	}
	if b.store != nil {
		stats.Location = b.store.Location()
	}
	return stats
}
