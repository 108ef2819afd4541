package codec

import (
	"io"
	"path/filepath"
	"strings"

	"netlayers/internal/domain"
)

// Codec converts a project document to and from one wire format
type Codec interface {
	Encode(doc *domain.Document, w io.Writer) error
	Decode(r io.Reader) (*domain.Document, error)
	Format() string
}

// ForPath picks the codec by file extension: YAML for .yaml and .yml,
// JSON otherwise
func ForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec()
	default:
		return NewJSONCodec()
	}
}

// ForFormat returns the codec for a format name, or nil
func ForFormat(format string) Codec {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec()
	case "yaml", "yml":
		return NewYAMLCodec()
	default:
		return nil
	}
}
