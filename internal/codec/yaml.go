package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"netlayers/internal/domain"
)

// YAMLCodec exports and imports the project document as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Decode reads a project document from YAML
func (c *YAMLCodec) Decode(r io.Reader) (*domain.Document, error) {
	var doc domain.Document
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, &domain.ParseError{Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}

	return &doc, nil
}

// Encode writes a project document as YAML
func (c *YAMLCodec) Encode(doc *domain.Document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
