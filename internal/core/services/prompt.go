package services

import (
	"strings"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// segmentSeparator is the blank line placed between context segments.
const segmentSeparator = "\n\n"

// AssemblePrompt builds the grounded answer prompt from the built-in template.
func AssemblePrompt(question string, segments []string) string {
	return AssemblePromptWithTemplate(domain.AnswerTemplate, question, segments)
}

// AssemblePromptWithTemplate fills tmpl with the segments, in retrieval
// order, and the question. A template missing either placeholder is
// replaced by the built-in one.
//
// Substitution is a single pass, so placeholder text inside the question
// or the segments is left as is.
func AssemblePromptWithTemplate(tmpl, question string, segments []string) string {
	if !ValidTemplate(tmpl) {
		tmpl = domain.AnswerTemplate
	}
	r := strings.NewReplacer(
		domain.PlaceholderContext, strings.Join(segments, segmentSeparator),
		domain.PlaceholderQuestion, question,
	)
	return r.Replace(tmpl)
}

// ValidTemplate reports whether tmpl contains both placeholders.
func ValidTemplate(tmpl string) bool {
	return strings.Contains(tmpl, domain.PlaceholderContext) &&
		strings.Contains(tmpl, domain.PlaceholderQuestion)
}
