package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts listed in vectors embed to that vector; anything else embeds to a
// vector derived from its length. Texts containing failOn fail the call.
type mockEmbeddingService struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	failOn  string
	calls   int
	batches [][]string
	block   chan struct{}
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 1, 0}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, append([]string(nil), texts...))
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, errors.New("embedding endpoint returned 500")
		}
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return 3
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return m.err
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	response string
	err      error
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return m.err
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	template string
	err      error
}

func (m *mockPromptStore) Load(_ string) (string, error) {
	return m.template, m.err
}

// mockRetriever implements driving.RetrievalService for testing.
type mockRetriever struct {
	results []domain.RetrievalResult
	err     error
}

func (m *mockRetriever) Retrieve(
	_ context.Context, _ string, _ domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	return m.results, m.err
}

func (m *mockRetriever) RetrieveVector(
	_ context.Context, _ []float32, _ domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	return m.results, m.err
}

// lineChunker implements driven.Chunker with one chunk per non-empty line.
type lineChunker struct{}

func (lineChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	offset := 0
	for _, line := range strings.Split(doc.Content, "\n") {
		n := len([]rune(line))
		if strings.TrimSpace(line) != "" {
			chunks = append(chunks, domain.Chunk{
				DocumentID: doc.ID,
				Position:   len(chunks),
				Text:       line,
				Start:      offset,
				End:        offset + n,
			})
		}
		offset += n + 1
	}
	return chunks, nil
}

func (lineChunker) Size() int    { return 0 }
func (lineChunker) Overlap() int { return 0 }

// mockNormaliserRegistry implements driven.NormaliserRegistry for testing.
// Documents with MIME type "application/octet-stream" are unsupported.
type mockNormaliserRegistry struct{}

func (mockNormaliserRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw.MIMEType == "application/octet-stream" {
		return nil, domain.ErrUnsupportedType
	}
	return &domain.Document{ID: raw.URI, URI: raw.URI, Content: string(raw.Content)}, nil
}

func (mockNormaliserRegistry) Register(_ driven.Normaliser) {}

func (mockNormaliserRegistry) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// mockDocumentSource implements driven.DocumentSource for testing.
type mockDocumentSource struct {
	docs    []domain.RawDocument
	errs    []error
	changes chan domain.RawDocumentChange
}

func (m *mockDocumentSource) SourceID() string {
	return "mock"
}

func (m *mockDocumentSource) FullSync(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, len(m.docs))
	errs := make(chan error, len(m.errs))
	for _, d := range m.docs {
		docs <- d
	}
	for _, e := range m.errs {
		errs <- e
	}
	close(docs)
	close(errs)
	return docs, errs
}

func (m *mockDocumentSource) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	return m.changes, nil
}

func (m *mockDocumentSource) Close() error {
	return nil
}
