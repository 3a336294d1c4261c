package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by
// extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data over the defaults.
func FromYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromJSON parses JSON data over the defaults.
func FromJSON(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return cfg, cfg.Validate()
}
