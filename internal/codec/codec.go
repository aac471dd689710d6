// Package codec reads and writes network seed files.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"hydrotwin/internal/repository"
)

// Decoder parses a network from a seed file
type Decoder interface {
	Parse(r io.Reader) (*repository.Network, error)
	Format() string
}

// Encoder writes a network as a seed file
type Encoder interface {
	Export(network *repository.Network, w io.Writer) error
	Format() string
}

// Codec both reads and writes one format
type Codec interface {
	Decoder
	Encoder
}

// ForFormat returns the codec for a format name ("yaml", "yml" or "json")
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	}
	return nil, fmt.Errorf("unsupported seed format %q", format)
}

// ForPath picks a codec from a file extension
func ForPath(path string) (Codec, error) {
	return ForFormat(filepath.Ext(path))
}
