package chunk

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the file exchanged between the chunk and embed commands.
type Document struct {
	Source   string      `json:"source,omitempty"`
	Language string      `json:"language,omitempty"`
	Options  Options     `json:"options"`
	Chunks   []TextChunk `json:"chunks"`
}

// WriteDocument encodes d as indented JSON.
func WriteDocument(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// ReadDocument decodes a Document.
func ReadDocument(r io.Reader) (Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Document{}, fmt.Errorf("decode chunks: %w", err)
	}
	return d, nil
}

// LoadDocument reads the Document at path.
func LoadDocument(path string) (Document, error) {
	f, err := os.Open(path) // #nosec G304 -- path is provided by the user on the command line
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadDocument(f)
}
