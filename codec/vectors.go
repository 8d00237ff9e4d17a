package codec

import (
	_ "embed"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed vectors.yaml
var vectorsYAML []byte

// Vector is one conformance pair: a value and the exact bytes it encodes to.
type Vector struct {
	Name  string
	Value Value
	Bytes []byte
}

type rawVector struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
	Hex   string `yaml:"hex"`
}

// Vectors returns the built-in conformance vectors.
func Vectors() ([]Vector, error) {
	return ParseVectors(vectorsYAML)
}

// ParseVectors reads vectors in the YAML layout of vectors.yaml.
func ParseVectors(data []byte) ([]Vector, error) {
	var raw []rawVector
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codec: parse vectors: %w", err)
	}
	out := make([]Vector, 0, len(raw))
	for _, r := range raw {
		v, err := FromAny(r.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: vector %q: %w", r.Name, err)
		}
		b, err := hex.DecodeString(r.Hex)
		if err != nil {
			return nil, fmt.Errorf("codec: vector %q: %w", r.Name, err)
		}
		out = append(out, Vector{Name: r.Name, Value: v, Bytes: b})
	}
	return out, nil
}
