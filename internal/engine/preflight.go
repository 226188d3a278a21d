package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
)

// PreflightIssue is a module whose runner cannot be resolved.
type PreflightIssue struct {
	Module   string `json:"module"`
	Runner   string `json:"runner"`
	Required bool   `json:"required"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Preflight resolves every fired module's runner without invoking it, so
// an unregistered reference shows up before a pass starts. Issues follow
// firing order.
func Preflight(m *manifest.Manifest, registry *runner.Registry) []PreflightIssue {
	var issues []PreflightIssue
	seen := make(map[string]bool)
	for _, key := range m.FiringOrder {
		if seen[key] {
			continue
		}
		seen[key] = true
		spec, ok := m.Modules[key]
		if !ok {
			continue
		}
		_, err := registry.Resolve(spec.Runner, runner.Config(spec.Config))
		if err == nil {
			continue
		}
		kind := KindRunnerUnavailable
		if errors.Is(err, runner.ErrNilRunner) {
			kind = KindRunnerContractViolation
		}
		issues = append(issues, PreflightIssue{
			Module:   key,
			Runner:   spec.Runner,
			Required: spec.Required,
			Kind:     string(kind),
			Message:  err.Error(),
		})
	}
	return issues
}

// Error renders the issue on one line.
func (p PreflightIssue) Error() string {
	return fmt.Sprintf("%s: runner %q: %s", p.Module, p.Runner, p.Message)
}
