package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"netlayers/internal/domain"
)

// JSONCodec handles the native project format
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Decode reads a project document from JSON
func (c *JSONCodec) Decode(r io.Reader) (*domain.Document, error) {
	var doc domain.Document
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, &domain.ParseError{Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}

	return &doc, nil
}

// Encode writes a project document as indented JSON
func (c *JSONCodec) Encode(doc *domain.Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
