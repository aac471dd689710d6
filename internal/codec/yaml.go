package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/repository"
)

// YAMLCodec handles YAML seed files
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads a network from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*repository.Network, error) {
	var network repository.Network
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&network); err != nil {
		if errors.Is(err, io.EOF) {
			return &repository.Network{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// edges default to open like the backend's column default
	for i := range network.Edges {
		if network.Edges[i].Status == "" {
			network.Edges[i].Status = domain.EdgeStatusOpen
		}
	}
	if err := Check(&network); err != nil {
		return nil, err
	}
	return &network, nil
}

// Export writes a network as YAML
func (c *YAMLCodec) Export(network *repository.Network, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(network); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
