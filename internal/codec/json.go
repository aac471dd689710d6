package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"hydrotwin/internal/repository"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a network from JSON
func (c *JSONCodec) Parse(r io.Reader) (*repository.Network, error) {
	var network repository.Network
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&network); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := Check(&network); err != nil {
		return nil, err
	}
	return &network, nil
}

// Export writes a network as indented JSON
func (c *JSONCodec) Export(network *repository.Network, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(network); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
