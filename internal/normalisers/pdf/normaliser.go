// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
	"github.com/custodia-labs/ragkit/internal/normalisers"
	"github.com/custodia-labs/ragkit/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the document text. When the PDF cannot be parsed the
// printable runs of the raw bytes are used instead and metadata["extraction"]
// is set to "fallback".
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	extraction := "pdf"
	text, err := extractText(raw.Content)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Debug("pdf %s: using printable fallback: %v", raw.URI, err)
		text = printable(raw.Content)
		extraction = "fallback"
	}

	doc := normalisers.NewDocument(raw, extractTitle(text, raw), text, "pdf")
	doc.Metadata["extraction"] = extraction
	return doc, nil
}

// extractText reads the plain text of every page.
// The reader panics on some malformed files; that is reported as an error.
func extractText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return plaintext.Clean(out), nil
}

// printable keeps printable runes and line breaks.
func printable(data []byte) string {
	s := plaintext.Clean(data)
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || (unicode.IsPrint(r) && r != unicode.ReplacementChar) {
			return r
		}
		return -1
	}, s))
}

// extractTitle prefers metadata, then the first line of text, then the URI.
func extractTitle(text string, raw *domain.RawDocument) string {
	if t, ok := raw.Metadata["title"].(string); ok && t != "" {
		return t
	}
	if line := normalisers.FirstLine(text); line != "" && len([]rune(line)) <= 120 {
		return line
	}
	return normalisers.TitleFromURI(raw.URI)
}
