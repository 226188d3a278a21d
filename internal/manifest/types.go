package manifest

import (
	"fmt"
	"slices"

	"github.com/roach88/abeflag/internal/ir"
)

// Manifest is the immutable description of one pass.
type Manifest struct {
	FiringOrder []string              `json:"firing_order" yaml:"firing_order"`
	Modules     map[string]ModuleSpec `json:"modules" yaml:"modules"`
}

// ModuleSpec declares one module.
type ModuleSpec struct {
	Required    bool           `json:"required" yaml:"required"`
	Requires    []string       `json:"requires" yaml:"requires"`
	Produces    []string       `json:"produces" yaml:"produces"`
	Runner      string         `json:"runner" yaml:"runner"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Destination returns produces[0], the path a single-valued output is
// written to.
func (s ModuleSpec) Destination() (string, bool) {
	if len(s.Produces) == 0 {
		return "", false
	}
	return s.Produces[0], true
}

// Label returns the display name, falling back to key.
func (s ModuleSpec) Label(key string) string {
	if s.Name != "" {
		return s.Name
	}
	return key
}

// Keys returns the firing order followed by any declared modules that are
// never fired, sorted. These are the modules that get a status entry.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Modules))
	seen := make(map[string]bool, len(m.Modules))
	for _, k := range m.FiringOrder {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range m.Modules {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

// normalize fills nil collections and converts config values into JSON
// trees so every format produces identical Manifest values.
func (m *Manifest) normalize() error {
	if m.FiringOrder == nil {
		m.FiringOrder = []string{}
	}
	if m.Modules == nil {
		m.Modules = map[string]ModuleSpec{}
	}
	for key, spec := range m.Modules {
		if spec.Requires == nil {
			spec.Requires = []string{}
		}
		if spec.Produces == nil {
			spec.Produces = []string{}
		}
		if spec.Config != nil {
			tree, err := ir.Normalize(spec.Config)
			if err != nil {
				return fmt.Errorf("module %s: config: %w", key, err)
			}
			obj, ok := tree.(map[string]any)
			if !ok {
				return fmt.Errorf("module %s: config must be an object", key)
			}
			spec.Config = obj
		}
		m.Modules[key] = spec
	}
	return nil
}
