package document

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a JSON document. Unknown fields are rejected so that typos in
// style names surface instead of silently falling back to defaults.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// DecodeFile reads a JSON document from path.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
