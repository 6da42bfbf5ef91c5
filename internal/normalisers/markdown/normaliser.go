// Package markdown normalises Markdown into readable text.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/normalisers"
	"github.com/custodia-labs/ragkit/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	frontMatter  = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	fence        = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headings     = regexp.MustCompile(`(?m)^ {0,3}#{1,6}[ \t]+`)
	emphasis     = regexp.MustCompile(`\*\*(\S.*?)\*\*|\b__(\S.*?)__\b|\*(\S.*?)\*|\b_(\S.*?)_\b`)
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	blockquote   = regexp.MustCompile(`(?m)^[ \t]*> ?`)
	rule         = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bullets      = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	tableDivider = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$\n?`)
	htmlTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
	titleHeading = regexp.MustCompile(`(?m)^ {0,3}#[ \t]+(.+?)[ \t]*#*[ \t]*$`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips Markdown syntax. Code block contents are kept since they
// often carry the answer; only the fences are removed.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	source := plaintext.Clean(raw.Content)
	title := ""
	if m := titleHeading.FindStringSubmatch(source); m != nil {
		title = m[1]
	}

	return normalisers.NewDocument(raw, title, Strip(source), "markdown"), nil
}

// Strip converts Markdown source to plain text.
func Strip(s string) string {
	s = frontMatter.ReplaceAllString(s, "")
	s = fence.ReplaceAllString(s, "")
	s = images.ReplaceAllString(s, "$1")
	s = links.ReplaceAllString(s, "$1")
	s = headings.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = emphasis.ReplaceAllString(s, "${1}${2}${3}${4}")
	s = blockquote.ReplaceAllString(s, "")
	s = rule.ReplaceAllString(s, "")
	s = tableDivider.ReplaceAllString(s, "")
	s = bullets.ReplaceAllString(s, "$1")
	s = htmlTag.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
