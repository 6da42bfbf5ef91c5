package driving

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// RetrievalService returns the stored segments most relevant to a question.
type RetrievalService interface {
	// Retrieve embeds the question and searches the index.
	// An empty result after threshold filtering is not an error.
	Retrieve(ctx context.Context, question string, opts domain.RetrieveOptions) ([]domain.RetrievalResult, error)

	// RetrieveVector searches the index with an already embedded question.
	RetrieveVector(ctx context.Context, vector []float32, opts domain.RetrieveOptions) ([]domain.RetrievalResult, error)
}

// AnswerService answers questions grounded in retrieved context.
type AnswerService interface {
	// Ask returns an answer. Collaborator failures degrade to a fallback
	// answer instead of an error.
	Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (*domain.Answer, error)
}
