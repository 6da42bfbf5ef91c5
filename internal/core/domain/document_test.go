package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_Len(t *testing.T) {
	c := Chunk{DocumentID: "doc", Position: 2, Text: "ghijk", Start: 6, End: 11}
	assert.Equal(t, 5, c.Len())
}

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "created", ChangeCreated.String())
	assert.Equal(t, "updated", ChangeUpdated.String())
	assert.Equal(t, "deleted", ChangeDeleted.String())
	assert.Equal(t, "unknown", ChangeType(42).String())
}

// TestRawDocumentChange_Fields tests RawDocumentChange structure
func TestRawDocumentChange_Fields(t *testing.T) {
	change := RawDocumentChange{
		Type: ChangeUpdated,
		Document: RawDocument{
			SourceID: "fs",
			URI:      "/notes/a.md",
			MIMEType: "text/markdown",
			Content:  []byte("# A"),
		},
	}

	assert.Equal(t, ChangeUpdated, change.Type)
	assert.Equal(t, "text/markdown", change.Document.MIMEType)
	assert.Equal(t, []byte("# A"), change.Document.Content)
}
