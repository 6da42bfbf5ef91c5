package domain

import "time"

// Fallback answers returned instead of an empty or failed generation.
const (
	// FallbackInsufficient is the literal sentence the model is instructed to
	// emit when the supplied context does not answer the question.
	FallbackInsufficient = "I don't have enough information in the provided context to answer that question."

	// FallbackUnavailable is returned when a collaborator fails at query time.
	FallbackUnavailable = "The answering service is currently unavailable. Please try again later."
)

// Prompt template placeholders.
const (
	PlaceholderContext  = "{context}"
	PlaceholderQuestion = "{question}"
)

// AnswerTemplate is the built-in grounded answer prompt. The context block
// precedes the question and the template carries FallbackInsufficient verbatim.
const AnswerTemplate = `You answer questions using only the context below.
Do not use any other knowledge.
If the context does not contain the answer, reply with exactly this sentence:
` + FallbackInsufficient + `

Context:
` + PlaceholderContext + `

Question: ` + PlaceholderQuestion + `

Answer:`

// RetrievalResult is one scored record returned for a question.
// For cosine indexes Score is a similarity; for euclidean it is a distance.
type RetrievalResult struct {
	ID         int64   `json:"id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Start      int     `json:"offset_start"`
	End        int     `json:"offset_end"`
	Score      float64 `json:"score"`
}

// RetrieveOptions configures a single retrieval.
type RetrieveOptions struct {
	// K is the maximum number of results; zero selects the configured default.
	K int

	// MinScore overrides the configured threshold when non-nil.
	MinScore *float64
}

// Answer is the outcome of a grounded question.
type Answer struct {
	// Text is the model output or one of the fallback sentences.
	Text string `json:"text"`

	// Sources are the retrieved segments the prompt was built from.
	Sources []RetrievalResult `json:"sources"`

	// Degraded is true when Text is a fallback rather than a generation.
	Degraded bool `json:"degraded"`

	// Reason explains a degraded answer.
	Reason string `json:"reason,omitempty"`
}

// BuildReport summarises one index build pass.
type BuildReport struct {
	BuildID   string        `json:"build_id"`
	Documents int           `json:"documents"`
	Skipped   int           `json:"skipped"`
	Chunks    int           `json:"chunks"`
	Records   int           `json:"records"`
	Duration  time.Duration `json:"duration"`

	// FailedChunks counts chunks dropped because their embedding call failed.
	FailedChunks int `json:"failed_chunks"`

	// Failures lists documents with failed embeddings, keyed by document id.
	Failures map[string]string `json:"failures,omitempty"`
}
