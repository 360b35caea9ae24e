package models

// RemoteFile is a file downloaded from the remote store. It only lives for
// the duration of one load.
type RemoteFile struct {
	Path    string
	Content []byte
}

type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]interface{}
}

// SourceOf returns the originating path recorded in the metadata, falling
// back to the Source field.
func (d Document) SourceOf() string {
	if src, ok := d.Metadata["source"].(string); ok && src != "" {
		return src
	}
	return d.Source
}
