// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Span is a chunk before it is attached to a document.
// Start and End are rune offsets, End exclusive.
type Span struct {
	Text  string
	Start int
	End   int
}

// Chunker splits text into windows of size characters where each window
// starts overlap characters before the previous one ended.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker.
// Returns domain.ErrInvalidConfiguration unless size > 0 and 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// NewFromConfig creates a chunker from the pipeline configuration.
func NewFromConfig(cfg domain.PipelineConfig) (*Chunker, error) {
	return New(cfg.ChunkSize, cfg.ChunkOverlap)
}

// Size returns the window size in characters.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits the document content into chunks tagged with the document id.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	spans := c.Split(doc.Content)
	if len(spans) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			DocumentID: doc.ID,
			Position:   i,
			Text:       s.Text,
			Start:      s.Start,
			End:        s.End,
		}
	}
	return chunks, nil
}

// Split divides text into overlapping spans, left to right.
//
// A window that does not reach the end of the text is shortened to the
// nearest paragraph, sentence or word boundary when one exists far enough
// into the window; otherwise it is cut at exactly size characters.
// The next window always starts overlap characters before the cut.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, n/(c.size-c.overlap)+1)
	start := 0
	for {
		end := start + c.size
		if end >= n {
			spans = append(spans, Span{Text: string(runes[start:n]), Start: start, End: n})
			return spans
		}

		end = c.boundary(runes, start, end)
		spans = append(spans, Span{Text: string(runes[start:end]), Start: start, End: end})
		start = end - c.overlap
	}
}

// minLength is the shortest window a boundary cut may produce.
// It is always greater than overlap so every step advances.
func (c *Chunker) minLength() int {
	return max(c.overlap+1, c.size/2)
}

// boundary returns the preferred cut in (start, end].
func (c *Chunker) boundary(runes []rune, start, end int) int {
	lo := start + c.minLength()
	if lo > end {
		return end
	}

	sentence, word := -1, -1
	for cut := end; cut >= lo; cut-- {
		prev := runes[cut-1]
		if prev == '\n' && cut-2 >= start && runes[cut-2] == '\n' {
			return cut
		}
		if !unicode.IsSpace(prev) {
			continue
		}
		if word < 0 {
			word = cut
		}
		if sentence < 0 && cut-2 >= start && isSentenceEnd(runes[cut-2]) {
			sentence = cut
		}
	}

	switch {
	case sentence >= 0:
		return sentence
	case word >= 0:
		return word
	default:
		return end
	}
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Reconstruct joins spans produced with the given overlap, dropping the
// shared prefix of every span after the first.
func Reconstruct(spans []Span, overlap int) string {
	if len(spans) == 0 {
		return ""
	}

	out := []rune(spans[0].Text)
	for _, s := range spans[1:] {
		r := []rune(s.Text)
		if overlap < len(r) {
			out = append(out, r[overlap:]...)
		}
	}
	return string(out)
}

// SpansOf converts chunks back into spans.
func SpansOf(chunks []domain.Chunk) []Span {
	spans := make([]Span, len(chunks))
	for i, ch := range chunks {
		spans[i] = Span{Text: ch.Text, Start: ch.Start, End: ch.End}
	}
	return spans
}
