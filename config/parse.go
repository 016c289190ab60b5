package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML config file at path, then validates it.
// Mirrors the teacher's fusion/config_parser.go two-step parse-then-use
// shape, but returns errors instead of silently returning an empty result.
func Load(path string) (*Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var root Root
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}
