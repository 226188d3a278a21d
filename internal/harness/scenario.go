package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
)

// Scenario defines one harness case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Manifest is the inline manifest document.
	Manifest yaml.Node `yaml:"manifest"`

	// Inputs are written under inputs.<key> before the first pass.
	Inputs map[string]any `yaml:"inputs,omitempty"`

	// Files is the intake file metadata handed to every pass.
	Files []FileSpec `yaml:"files,omitempty"`

	// Runners maps runner references to scripted behaviour.
	Runners map[string]RunnerScript `yaml:"runners,omitempty"`

	// Passes is how many passes to run. Default 1.
	Passes int `yaml:"passes,omitempty"`

	// StableReceipt asserts every pass produced the same receipt hash.
	StableReceipt bool `yaml:"stable_receipt,omitempty"`

	// Expect is checked after the last pass.
	Expect Expectations `yaml:"expect"`
}

// FileSpec is intake file metadata.
type FileSpec struct {
	Name string `yaml:"name"`
	Size int64  `yaml:"size"`
	Type string `yaml:"type"`
}

// RunnerScript is the behaviour of a scripted runner. Exactly one of
// Returns, Writes, Error or Panic applies; none means a Single(nil) output.
type RunnerScript struct {
	Returns any            `yaml:"returns,omitempty"`
	Writes  map[string]any `yaml:"writes,omitempty"`
	Error   string         `yaml:"error,omitempty"`
	Panic   string         `yaml:"panic,omitempty"`
}

// Expectations about the final state. Every field is optional.
type Expectations struct {
	Outcome       ir.PassOutcome    `yaml:"outcome,omitempty"`
	HaltedAt      string            `yaml:"halted_at,omitempty"`
	Status        map[string]string `yaml:"status,omitempty"`
	NotesContain  map[string]string `yaml:"notes_contain,omitempty"`
	Derived       map[string]any    `yaml:"derived,omitempty"`
	HashesPresent []string          `yaml:"hashes_present,omitempty"`
	HashesAbsent  []string          `yaml:"hashes_absent,omitempty"`
	Calls         map[string]int    `yaml:"calls,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// ParsedManifest decodes the inline manifest.
func (s *Scenario) ParsedManifest() (*manifest.Manifest, error) {
	data, err := yaml.Marshal(&s.Manifest)
	if err != nil {
		return nil, fmt.Errorf("encode inline manifest: %w", err)
	}
	return manifest.Parse(data, manifest.FormatYAML, s.Name+".manifest")
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Manifest.Kind == 0 {
		return fmt.Errorf("manifest is required")
	}
	if s.Passes < 0 {
		return fmt.Errorf("passes must be non-negative")
	}
	for name, script := range s.Runners {
		set := 0
		if script.Returns != nil {
			set++
		}
		if script.Writes != nil {
			set++
		}
		if script.Error != "" {
			set++
		}
		if script.Panic != "" {
			set++
		}
		if set > 1 {
			return fmt.Errorf("runners.%s: set at most one of returns, writes, error, panic", name)
		}
	}
	for key, status := range s.Expect.Status {
		if !ir.Status(status).Valid() {
			return fmt.Errorf("expect.status.%s: unknown status %q", key, status)
		}
	}
	switch s.Expect.Outcome {
	case "", ir.PassCompleted, ir.PassHalted, ir.PassCancelled:
	default:
		return fmt.Errorf("expect.outcome: unknown outcome %q", s.Expect.Outcome)
	}
	return nil
}
