package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// Reasons attached to degraded answers.
const (
	ReasonNoContext       = "no relevant context"
	ReasonEmbeddingFailed = "embedding failed"
	ReasonLLMMissing      = "no language model configured"
	ReasonGenerateFailed  = "generation failed"
	ReasonEmptyGeneration = "empty generation"
)

// AnswerService answers questions from retrieved context.
type AnswerService struct {
	retriever driving.RetrievalService
	llm       driven.LLMService
	prompts   driven.PromptStore
	opts      driven.GenerateOptions
}

// NewAnswerService creates an answer service.
// The llm and prompts parameters are optional (can be nil).
func NewAnswerService(
	retriever driving.RetrievalService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts driven.GenerateOptions,
) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		llm:       llm,
		prompts:   prompts,
		opts:      opts,
	}
}

// Ask retrieves context for question and generates a grounded answer.
// Embedding and generation failures produce a degraded answer, not an error.
func (s *AnswerService) Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	ctx, span := tracer.Start(ctx, "answer.Ask")
	defer span.End()

	results, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingFailure) && ctx.Err() == nil {
			logger.Warn("Retrieval degraded: %v", err)
			span.RecordError(err)
			return degraded(domain.FallbackUnavailable, ReasonEmbeddingFailed, nil), nil
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("answer.sources", len(results)))

	if len(results) == 0 {
		logger.Info("No context survived retrieval; not calling the model")
		return degraded(domain.FallbackInsufficient, ReasonNoContext, results), nil
	}
	if s.llm == nil {
		return degraded(domain.FallbackUnavailable, ReasonLLMMissing, results), nil
	}

	segments := make([]string, len(results))
	for i, r := range results {
		segments[i] = r.Text
	}
	prompt := AssemblePromptWithTemplate(s.template(), question, segments)

	logger.Debug("Generating with %s (%d segments, %d prompt chars)", s.llm.ModelName(), len(segments), len(prompt))
	text, err := s.llm.Generate(ctx, prompt, s.opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		err = fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
		logger.Warn("Generation degraded: %v", err)
		span.RecordError(err)
		return degraded(domain.FallbackUnavailable, ReasonGenerateFailed, results), nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return degraded(domain.FallbackInsufficient, ReasonEmptyGeneration, results), nil
	}
	return &domain.Answer{Text: text, Sources: results}, nil
}

// template returns the user template when it is usable.
func (s *AnswerService) template() string {
	if s.prompts == nil {
		return domain.AnswerTemplate
	}
	tmpl, err := s.prompts.Load(driven.PromptAnswer)
	if err != nil || !ValidTemplate(tmpl) {
		if err == nil {
			logger.Warn("Prompt %q lacks {context} or {question}; using built-in template", driven.PromptAnswer)
		}
		return domain.AnswerTemplate
	}
	return tmpl
}

func degraded(text, reason string, sources []domain.RetrievalResult) *domain.Answer {
	if sources == nil {
		sources = []domain.RetrievalResult{}
	}
	return &domain.Answer{Text: text, Sources: sources, Degraded: true, Reason: reason}
}
