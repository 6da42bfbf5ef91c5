package domain

// RawDocument is a file as read by a source, before normalisation. Its URI
// becomes the document id of every chunk cut from it.
type RawDocument struct {
	SourceID string
	URI      string
	MIMEType string
	Content  []byte
	Metadata map[string]any
}

// ChangeType classifies a RawDocumentChange.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeDeleted
)

// String returns a lowercase name for the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RawDocumentChange is one event from a watched source. Deleted documents
// carry only the URI.
type RawDocumentChange struct {
	Type     ChangeType
	Document RawDocument
}
