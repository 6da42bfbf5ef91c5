package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/services"
)

// --- Mock implementations ---

type mockIndexService struct {
	mu        sync.Mutex
	report    *domain.BuildReport
	err       error
	saveErr   error
	stats     domain.IndexStats
	sourceIDs []string
	saves     int
	watched   bool
}

func (m *mockIndexService) Build(_ context.Context, _ []domain.Document) (*domain.BuildReport, error) {
	return m.report, m.err
}

func (m *mockIndexService) IndexSource(_ context.Context, source driven.DocumentSource) (*domain.BuildReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceIDs = append(m.sourceIDs, source.SourceID())
	return m.report, m.err
}

func (m *mockIndexService) Watch(_ context.Context, _ driven.DocumentSource) error {
	m.watched = true
	return nil
}

func (m *mockIndexService) Save(_ context.Context) error {
	m.saves++
	return m.saveErr
}

func (m *mockIndexService) Load(_ context.Context) error {
	return nil
}

func (m *mockIndexService) Stats() domain.IndexStats {
	return m.stats
}

type mockRetrievalService struct {
	results  []domain.RetrievalResult
	err      error
	question string
	opts     domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, question string, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	m.question = question
	m.opts = opts
	return m.results, m.err
}

func (m *mockRetrievalService) RetrieveVector(
	_ context.Context, _ []float32, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	m.opts = opts
	return m.results, m.err
}

type mockAnswerService struct {
	answer *domain.Answer
	err    error
	opts   domain.RetrieveOptions
}

func (m *mockAnswerService) Ask(_ context.Context, _ string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	m.opts = opts
	return m.answer, m.err
}

type mockChecker struct {
	embeddingErr error
	llmErr       error
	embedding    *domain.EmbeddingSettings
}

func (m *mockChecker) CheckEmbedding(_ context.Context, s *domain.EmbeddingSettings) error {
	m.embedding = s
	return m.embeddingErr
}

func (m *mockChecker) CheckLLM(_ context.Context, _ *domain.LLMSettings) error {
	return m.llmErr
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	index     *mockIndexService
	retrieval *mockRetrievalService
	answer    *mockAnswerService
	checker   *mockChecker
	settings  *services.SettingsService
}

func sampleResults() []domain.RetrievalResult {
	return []domain.RetrievalResult{
		{ID: 1, DocumentID: "policy.md", Text: "Refunds are accepted\nwithin 30 days.", Start: 0, End: 36, Score: 0.9213},
		{ID: 4, DocumentID: "faq.md", Text: "Returned items ship back free.", Start: 80, End: 110, Score: 0.7105},
	}
}

// setupTestServices installs mocks and returns a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		index: &mockIndexService{
			report: &domain.BuildReport{BuildID: "build-1", Documents: 2, Chunks: 5, Records: 5},
			stats: domain.IndexStats{
				Dimension: 3, Metric: domain.MetricCosine, RecordCount: 5, Documents: 2,
				BuildID: "build-1", Location: "/tmp/index.ragx",
			},
		},
		retrieval: &mockRetrievalService{results: sampleResults()},
		answer: &mockAnswerService{answer: &domain.Answer{
			Text:    "Refunds are accepted within 30 days.",
			Sources: sampleResults(),
		}},
		checker:  &mockChecker{},
		settings: services.NewSettingsService(memory.NewConfigStore()),
	}

	previousBootstrap := bootstrap
	bootstrap = nil
	SetServices(&Services{
		Settings:  ts.settings,
		Index:     ts.index,
		Retrieval: ts.retrieval,
		Answer:    ts.answer,
		Checker:   ts.checker,
	})

	return ts, func() {
		SetServices(nil)
		bootstrap = previousBootstrap
	}
}

// executeCommand runs rootCmd with args and resets every flag afterwards.
func executeCommand(args ...string) (string, error) {
	return executeWithInput("", args...)
}

func executeWithInput(input string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
