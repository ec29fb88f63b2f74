// config.go — Redaction rule file loading (YAML, or JSON as a YAML subset).
package redaction

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the rule file structure.
type Config struct {
	// Patterns are applied after the built-ins, in order.
	Patterns []Pattern `yaml:"patterns" json:"patterns"`
	// HeaderNames have their values replaced by Mask (case-insensitive).
	HeaderNames []string `yaml:"header_names" json:"header_names"`
	// JSONKeys have their values replaced by Mask anywhere in a JSON body (case-insensitive).
	JSONKeys []string `yaml:"json_keys" json:"json_keys"`
	// DisableBuiltins drops the built-in secret patterns.
	DisableBuiltins bool `yaml:"disable_builtins" json:"disable_builtins"`
}

// LoadConfig reads a rule file. Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return Config{}, errors.Wrap(err, "read redaction rules")
	}
	return ParseConfig(data)
}

// ParseConfig decodes a rule document. An empty document yields the zero Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		return Config{}, errors.Wrap(err, "parse redaction rules")
	}
	return cfg, nil
}
