// Package html normalises HTML pages into their visible text.
package html

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// skipped elements contribute no text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "template": true, "iframe": true,
}

// block elements break lines.
var block = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "blockquote": true, "pre": true,
	"section": true, "article": true, "header": true, "footer": true, "main": true, "nav": true,
}

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the title and visible text of the page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	title, text, err := Extract(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, err
	}
	return normalisers.NewDocument(raw, title, text, "html"), nil
}

// Extract returns the <title> and the visible text, one block per line.
func Extract(r io.Reader) (title, text string, err error) {
	z := html.NewTokenizer(r)

	var (
		out       strings.Builder
		titleBuf  strings.Builder
		skipDepth int
		inTitle   bool
		inHead    bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.TrimSpace(collapse(titleBuf.String())), tidy(out.String()), nil
			}
			return "", "", z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case skipped[tag] && tt == html.StartTagToken:
				skipDepth++
			case tag == "head":
				inHead = true
			case tag == "title":
				inTitle = tt == html.StartTagToken
			case block[tag]:
				out.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case skipped[tag]:
				if skipDepth > 0 {
					skipDepth--
				}
			case tag == "head":
				inHead = false
			case tag == "title":
				inTitle = false
			case block[tag]:
				out.WriteByte('\n')
			}

		case html.TextToken:
			switch {
			case inTitle:
				titleBuf.Write(z.Text())
			case skipDepth > 0, inHead:
			default:
				out.Write(z.Text())
			}
		}
	}
}

// tidy collapses whitespace within lines and drops blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = collapse(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
