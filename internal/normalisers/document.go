package normalisers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// NewDocument builds a normalised document from raw.
//
// The document id is the raw URI so that re-indexing a changed file keeps
// its identity; documents without a URI get a random id. Raw metadata is
// copied and extended with mime_type and format.
func NewDocument(raw *domain.RawDocument, title, content, format string) *domain.Document {
	id := raw.URI
	if id == "" {
		id = uuid.New().String()
	}
	if title == "" {
		title = Title(raw)
	}

	metadata := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		metadata[k] = v
	}
	metadata["mime_type"] = raw.MIMEType
	if format != "" {
		metadata["format"] = format
	}

	return &domain.Document{
		ID:        id,
		URI:       raw.URI,
		Title:     title,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// Title returns metadata["title"] if set, otherwise a title derived from the URI.
func Title(raw *domain.RawDocument) string {
	if t, ok := raw.Metadata["title"].(string); ok && t != "" {
		return t
	}
	return TitleFromURI(raw.URI)
}

// TitleFromURI turns "notes/refund_policy-v2.md" into "refund policy v2".
func TitleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

// FirstLine returns the first non-blank line of content, trimmed.
func FirstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
