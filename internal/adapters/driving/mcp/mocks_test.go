package mcp

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error
	opts    domain.RetrieveOptions
	query   string
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	question string,
	opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	m.query = question
	m.opts = opts
	return m.results, m.err
}

func (m *mockRetrievalService) RetrieveVector(
	_ context.Context,
	_ []float32,
	opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	m.opts = opts
	return m.results, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error
	opts   domain.RetrieveOptions
}

func (m *mockAnswerService) Ask(_ context.Context, _ string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	m.opts = opts
	return m.answer, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	stats domain.IndexStats
}

func (m *mockIndexService) Build(_ context.Context, _ []domain.Document) (*domain.BuildReport, error) {
	return &domain.BuildReport{}, nil
}

func (m *mockIndexService) IndexSource(_ context.Context, _ driven.DocumentSource) (*domain.BuildReport, error) {
	return &domain.BuildReport{}, nil
}

func (m *mockIndexService) Watch(_ context.Context, _ driven.DocumentSource) error {
	return nil
}

func (m *mockIndexService) Save(_ context.Context) error {
	return nil
}

func (m *mockIndexService) Load(_ context.Context) error {
	return nil
}

func (m *mockIndexService) Stats() domain.IndexStats {
	return m.stats
}
