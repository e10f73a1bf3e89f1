package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and decodes a model document from path. Unknown top-level
// fields are rejected so a typo in a document surfaces immediately rather
// than silently building an incomplete network.
func Load(path string) (*ModelDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	var doc ModelDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}
	return &doc, nil
}

// LoadAndBuild loads a document and immediately builds it.
func LoadAndBuild(path string) (*Built, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}
