package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a manifest document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported manifest extension %q (want .json, .yaml, .yml, .cue or .hcl)", filepath.Ext(path))
}

// Load reads, parses and validates the manifest at path. Validation
// failures are returned as ValidationErrors.
func Load(path string) (*Manifest, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if errs := m.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return m, nil
}

// ParseFile reads and parses the manifest at path without validating it.
func ParseFile(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a manifest document. filename is used in error positions.
func Parse(data []byte, format Format, filename string) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch format {
	case FormatJSON:
		m, err = parseJSON(data)
	case FormatYAML:
		m, err = parseYAML(data)
	case FormatCUE:
		m, err = parseCUE(data, filename)
	case FormatHCL:
		m, err = parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s manifest %s: %w", format, filename, err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("parse %s manifest %s: %w", format, filename, err)
	}
	return m, nil
}

func parseJSON(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
