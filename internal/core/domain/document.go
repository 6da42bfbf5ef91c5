package domain

import "time"

// Document represents a normalised unit of ingested text.
// It is immutable once produced by a normaliser.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text content after normalisation.
	// Chunk offsets index into this string by character (rune).
	Content string

	// Metadata contains arbitrary key-value pairs such as mime_type and format.
	Metadata map[string]any

	// CreatedAt is when the document was normalised.
	CreatedAt time.Time
}

// Chunk is a contiguous span of a document's content.
// Chunks of one document are produced left to right and consecutive
// chunks overlap by the configured number of characters.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Position is the ordinal position within the document.
	Position int

	// Text is the chunk content, equal to the runes of Content in [Start, End).
	Text string

	// Start is the inclusive character offset into the document content.
	Start int

	// End is the exclusive character offset into the document content.
	End int
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.End - c.Start
}
