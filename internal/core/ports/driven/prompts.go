package driven

// PromptAnswer names the grounded answer template. It uses the {context}
// and {question} placeholders.
const PromptAnswer = "answer"

// PromptStore provides user-customisable prompt templates.
type PromptStore interface {
	// Load returns the template for name, falling back to a built-in
	// default when the user copy is missing or unreadable.
	Load(name string) (string, error)
}
