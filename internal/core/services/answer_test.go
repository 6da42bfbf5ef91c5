package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

func testResults() []domain.RetrievalResult {
	return []domain.RetrievalResult{
		{ID: 1, DocumentID: "policy", Text: "Refunds are accepted within 30 days.", Score: 0.92},
		{ID: 3, DocumentID: "faq", Text: "Returned items ship back free.", Score: 0.71},
	}
}

func TestAnswerService_Ask_Grounded(t *testing.T) {
	llm := &mockLLMService{response: "  Within 30 days.  "}
	opts := driven.GenerateOptions{MaxTokens: 256, Temperature: 0.1}
	svc := NewAnswerService(&mockRetriever{results: testResults()}, llm, nil, opts)

	answer, err := svc.Ask(context.Background(), "What is the refund window?", domain.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Within 30 days.", answer.Text)
	assert.False(t, answer.Degraded)
	assert.Empty(t, answer.Reason)
	assert.Equal(t, testResults(), answer.Sources)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Refunds are accepted within 30 days.\n\nReturned items ship back free.")
	assert.Contains(t, prompt, "What is the refund window?")
	assert.Contains(t, prompt, domain.FallbackInsufficient)
	assert.Equal(t, opts, llm.opts[0])
}

func TestAnswerService_Ask_NoResultsSkipsModel(t *testing.T) {
	llm := &mockLLMService{response: "invented"}
	svc := NewAnswerService(&mockRetriever{results: []domain.RetrievalResult{}}, llm, nil, driven.GenerateOptions{})

	answer, err := svc.Ask(context.Background(), "Who won the 1998 world cup?", domain.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.FallbackInsufficient, answer.Text)
	assert.True(t, answer.Degraded)
	assert.Equal(t, ReasonNoContext, answer.Reason)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, llm.prompts)
}

func TestAnswerService_Ask_EmbeddingFailureDegrades(t *testing.T) {
	retriever := &mockRetriever{err: fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, errors.New("timeout"))}
	llm := &mockLLMService{response: "x"}
	svc := NewAnswerService(retriever, llm, nil, driven.GenerateOptions{})

	answer, err := svc.Ask(context.Background(), "q", domain.RetrieveOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.FallbackUnavailable, answer.Text)
	assert.True(t, answer.Degraded)
	assert.Equal(t, ReasonEmbeddingFailed, answer.Reason)
	assert.Empty(t, llm.prompts)
}

func TestAnswerService_Ask_RetrievalErrorsPropagate(t *testing.T) {
	for _, cause := range []error{domain.ErrInvalidInput, domain.ErrEmptyIndex, domain.ErrInvalidK} {
		svc := NewAnswerService(&mockRetriever{err: cause}, &mockLLMService{}, nil, driven.GenerateOptions{})

		answer, err := svc.Ask(context.Background(), "q", domain.RetrieveOptions{})
		assert.Nil(t, answer)
		assert.True(t, errors.Is(err, cause), "expected %v, got %v", cause, err)
	}
}

func TestAnswerService_Ask_NoLLM(t *testing.T) {
	svc := NewAnswerService(&mockRetriever{results: testResults()}, nil, nil, driven.GenerateOptions{})

	answer, err := svc.Ask(context.Background(), "q", domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackUnavailable, answer.Text)
	assert.Equal(t, ReasonLLMMissing, answer.Reason)
	assert.Len(t, answer.Sources, 2)
}

func TestAnswerService_Ask_GenerateFailureDegrades(t *testing.T) {
	llm := &mockLLMService{err: errors.New("503 service unavailable")}
	svc := NewAnswerService(&mockRetriever{results: testResults()}, llm, nil, driven.GenerateOptions{})

	answer, err := svc.Ask(context.Background(), "q", domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackUnavailable, answer.Text)
	assert.True(t, answer.Degraded)
	assert.Equal(t, ReasonGenerateFailed, answer.Reason)
	assert.Len(t, answer.Sources, 2)
}

func TestAnswerService_Ask_CancelledGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &mockLLMService{err: context.Canceled}
	svc := NewAnswerService(&mockRetriever{results: testResults()}, llm, nil, driven.GenerateOptions{})

	_, err := svc.Ask(ctx, "q", domain.RetrieveOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswerService_Ask_EmptyGeneration(t *testing.T) {
	svc := NewAnswerService(&mockRetriever{results: testResults()}, &mockLLMService{response: " \n "}, nil,
		driven.GenerateOptions{})

	answer, err := svc.Ask(context.Background(), "q", domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackInsufficient, answer.Text)
	assert.Equal(t, ReasonEmptyGeneration, answer.Reason)
}

func TestAnswerService_Ask_CustomTemplate(t *testing.T) {
	llm := &mockLLMService{response: "ok"}
	prompts := &mockPromptStore{template: "CTX<{context}> Q<{question}>"}
	svc := NewAnswerService(&mockRetriever{results: testResults()[:1]}, llm, prompts, driven.GenerateOptions{})

	_, err := svc.Ask(context.Background(), "why?", domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "CTX<Refunds are accepted within 30 days.> Q<why?>", llm.prompts[0])
}

func TestAnswerService_Ask_InvalidTemplateFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		store *mockPromptStore
	}{
		{name: "missing question", store: &mockPromptStore{template: "only {context}"}},
		{name: "load error", store: &mockPromptStore{err: errors.New("permission denied")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLMService{response: "ok"}
			svc := NewAnswerService(&mockRetriever{results: testResults()}, llm, tt.store, driven.GenerateOptions{})

			_, err := svc.Ask(context.Background(), "why?", domain.RetrieveOptions{})
			require.NoError(t, err)
			assert.Contains(t, llm.prompts[0], domain.FallbackInsufficient)
			assert.Contains(t, llm.prompts[0], "Question: why?")
		})
	}
}
