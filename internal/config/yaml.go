package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/die-net/socksify/internal/rules"
)

type yamlFile struct {
	Rules []Entry `yaml:"rules"`
}

// LoadYAML reads a YAML rule file.
func LoadYAML(path string) (*rules.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	rs, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return rs, nil
}

// ParseYAML parses YAML rules. Unknown fields are rejected.
func ParseYAML(data []byte) (*rules.RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f yamlFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return Build(f.Rules)
}
