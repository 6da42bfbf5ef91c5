package api

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error
	opts    domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _ string, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
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
	answer   *domain.Answer
	err      error
	question string
}

func (m *mockAnswerService) Ask(_ context.Context, question string, _ domain.RetrieveOptions) (*domain.Answer, error) {
	m.question = question
	return m.answer, m.err
}

type mockIndexService struct {
	stats domain.IndexStats
}

func (m *mockIndexService) Build(_ context.Context, _ []domain.Document) (*domain.BuildReport, error) {
	return &domain.BuildReport{}, nil
}

func (m *mockIndexService) IndexSource(_ context.Context, _ driven.DocumentSource) (*domain.BuildReport, error) {
	return &domain.BuildReport{}, nil
}

func (m *mockIndexService) Watch(_ context.Context, _ driven.DocumentSource) error { return nil }
func (m *mockIndexService) Save(_ context.Context) error                          { return nil }
func (m *mockIndexService) Load(_ context.Context) error                          { return nil }
func (m *mockIndexService) Stats() domain.IndexStats                              { return m.stats }
