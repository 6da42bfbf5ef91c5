// Package registry dispatches raw documents to the best normaliser for
// their MIME type.
package registry

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/normalisers/html"
	"github.com/custodia-labs/ragkit/internal/normalisers/markdown"
	"github.com/custodia-labs/ragkit/internal/normalisers/pdf"
	"github.com/custodia-labs/ragkit/internal/normalisers/plaintext"
	"github.com/custodia-labs/ragkit/internal/normalisers/xlsx"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry holds normalisers ordered by priority per MIME type.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]driven.Normaliser
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byType: make(map[string][]driven.Normaliser)}
}

// Default creates a registry with every built-in normaliser.
func Default() *Registry {
	r := New()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(pdf.New())
	r.Register(xlsx.New())
	return r
}

// Register adds a normaliser for each of its MIME types.
// Among equal priorities the earlier registration wins.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range n.SupportedMIMETypes() {
		t = canonical(t)
		list := append(r.byType[t], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byType[t] = list
	}
}

// Normalise runs the highest priority normaliser for raw's MIME type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	list := r.byType[canonical(raw.MIMEType)]
	r.mu.RUnlock()

	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedType, raw.MIMEType, raw.URI)
	}
	return list[0].Normalise(ctx, raw)
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// canonical lower-cases a MIME type and drops any parameters.
func canonical(mimeType string) string {
	if t, _, err := mime.ParseMediaType(mimeType); err == nil {
		return t
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
