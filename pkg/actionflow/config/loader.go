package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// FromFile reads a settings document, choosing the decoder by extension:
// .yaml and .yml, .json, or .cue.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	case ".cue":
		return FromCUE(data)
	default:
		return Config{}, fmt.Errorf("unsupported settings file extension: %s", ext)
	}
}

// FromYAML decodes a YAML settings document.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON settings document.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromCUE evaluates a CUE settings document. The document must be concrete
// once evaluated; definitions and hidden fields are not part of the result.
func FromCUE(data []byte) (Config, error) {
	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("parse cue: %w", err)
	}
	var m map[string]any
	if err := v.Decode(&m); err != nil {
		return Config{}, fmt.Errorf("decode cue: %w", err)
	}
	return New(m), nil
}
