package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/abeflag/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyFiringOrder   = "E101" // firing_order must list at least one module
	ErrUnknownModule      = "E102" // firing_order names an undeclared module
	ErrDuplicateFiring    = "E103" // module appears twice in firing_order
	ErrMissingRunner      = "E104" // module has no runner reference
	ErrInvalidPath        = "E105" // requires/produces path is malformed
	ErrProtectedNamespace = "E106" // produces targets a namespace modules may not write
	ErrDuplicatePath      = "E107" // path listed twice in requires or produces
	ErrInvalidModuleKey   = "E108" // module key is empty or contains a dot
)

// Lint warning codes (W200-W299)
const (
	WarnNeverFired       = "W201" // module declared but absent from firing_order
	WarnProducedLater    = "W202" // requires a path only produced by a later module
	WarnExtraProduces    = "W203" // produces lists paths a single output never reaches
	WarnNeverProduced    = "W204" // requires a derived path no module produces
	WarnOptionalUpstream = "W205" // required module depends on an optional module's output
	WarnDependencyCycle  = "W206" // fired modules depend on each other's outputs
)

// ValidationError describes one manifest problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by Load when Validate finds problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid manifest: " + strings.Join(msgs, "; ")
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// Validate checks the manifest contract. Returns all errors found (does not
// fail-fast), in firing order then key order.
func (m *Manifest) Validate() []ValidationError {
	var errs []ValidationError

	if len(m.FiringOrder) == 0 {
		errs = append(errs, ValidationError{
			Field:   "firing_order",
			Message: "must list at least one module",
			Code:    ErrEmptyFiringOrder,
		})
	}

	seen := make(map[string]bool, len(m.FiringOrder))
	for i, key := range m.FiringOrder {
		field := fmt.Sprintf("firing_order[%d]", i)
		if seen[key] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("module %q listed more than once", key), Code: ErrDuplicateFiring})
			continue
		}
		seen[key] = true
		if _, ok := m.Modules[key]; !ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("module %q is not declared in modules", key), Code: ErrUnknownModule})
		}
	}

	for _, key := range m.Keys() {
		spec, ok := m.Modules[key]
		if !ok {
			continue
		}
		errs = append(errs, validateModule(key, spec)...)
	}
	return errs
}

func validateModule(key string, spec ModuleSpec) []ValidationError {
	var errs []ValidationError
	prefix := "modules." + key

	if key == "" || strings.Contains(key, ".") {
		errs = append(errs, ValidationError{Field: prefix, Message: "module key must be non-empty and contain no dots", Code: ErrInvalidModuleKey})
	}
	if strings.TrimSpace(spec.Runner) == "" {
		errs = append(errs, ValidationError{Field: prefix + ".runner", Message: "runner reference is required", Code: ErrMissingRunner})
	}

	errs = append(errs, validatePaths(prefix+".requires", spec.Requires, false)...)
	errs = append(errs, validatePaths(prefix+".produces", spec.Produces, true)...)
	return errs
}

func validatePaths(field string, paths []string, writes bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(paths))
	for i, p := range paths {
		f := fmt.Sprintf("%s[%d]", field, i)
		if seen[p] {
			errs = append(errs, ValidationError{Field: f, Message: fmt.Sprintf("path %q listed more than once", p), Code: ErrDuplicatePath})
			continue
		}
		seen[p] = true

		if writes {
			if err := CheckOutputPath(p); err != nil {
				code := ErrProtectedNamespace
				if errors.Is(err, ir.ErrInvalidPath) {
					code = ErrInvalidPath
				}
				errs = append(errs, ValidationError{Field: f, Message: err.Error(), Code: code})
			}
			continue
		}
		if _, err := ir.SplitPath(p); err != nil {
			errs = append(errs, ValidationError{Field: f, Message: err.Error(), Code: ErrInvalidPath})
		}
	}
	return errs
}

// CheckOutputPath reports whether a module output may be written to path:
// it must address a key inside inputs or derived.
func CheckOutputPath(path string) error {
	segs, err := ir.SplitPath(path)
	if err != nil {
		return err
	}
	switch segs[0] {
	case ir.NSInputs, ir.NSDerived:
		if len(segs) < 2 {
			return fmt.Errorf("%w: %q replaces a whole namespace", ir.ErrReadOnlyPath, path)
		}
		return nil
	}
	return fmt.Errorf("%w: modules may only write inputs.* or derived.*, got %q", ir.ErrReadOnlyPath, path)
}

// Lint reports manifest shapes that are valid but almost certainly wrong.
// Call it only on a manifest that passes Validate.
func (m *Manifest) Lint() []ValidationError {
	var warns []ValidationError

	fired := make(map[string]bool, len(m.FiringOrder))
	for _, key := range m.FiringOrder {
		fired[key] = true
	}
	for _, key := range m.Keys() {
		if !fired[key] {
			warns = append(warns, ValidationError{Field: "modules." + key, Message: "declared but not in firing_order; it will stay PENDING", Code: WarnNeverFired})
		}
	}

	// producer[path] = firing position of the first module producing it
	producer := map[string]int{}
	for pos, key := range m.FiringOrder {
		for _, p := range m.Modules[key].Produces {
			if _, ok := producer[p]; !ok {
				producer[p] = pos
			}
		}
	}

	for pos, key := range m.FiringOrder {
		spec := m.Modules[key]
		prefix := "modules." + key

		if len(spec.Produces) > 1 {
			warns = append(warns, ValidationError{
				Field:   prefix + ".produces",
				Message: fmt.Sprintf("single outputs are written to %q only; %d further paths need a multi-write output", spec.Produces[0], len(spec.Produces)-1),
				Code:    WarnExtraProduces,
			})
		}

		for _, req := range spec.Requires {
			at, produced := producerOf(producer, req)
			switch {
			case produced && at >= pos:
				warns = append(warns, ValidationError{
					Field:   prefix + ".requires",
					Message: fmt.Sprintf("%q is produced by %s, which fires at or after this module", req, m.FiringOrder[at]),
					Code:    WarnProducedLater,
				})
			case !produced && strings.HasPrefix(req, ir.NSDerived+"."):
				warns = append(warns, ValidationError{
					Field:   prefix + ".requires",
					Message: fmt.Sprintf("no module produces %q", req),
					Code:    WarnNeverProduced,
				})
			case produced && spec.Required && !m.Modules[m.FiringOrder[at]].Required:
				warns = append(warns, ValidationError{
					Field:   prefix + ".requires",
					Message: fmt.Sprintf("required module depends on %q from optional module %s; a SKIP upstream halts the pass", req, m.FiringOrder[at]),
					Code:    WarnOptionalUpstream,
				})
			}
		}
	}
	return append(warns, m.lintCycles()...)
}

// producerOf finds the earliest producer of path or of one of its ancestors
// or descendants, since a write to derived.a also makes derived.a.b resolvable.
func producerOf(producer map[string]int, path string) (int, bool) {
	best, found := 0, false
	for p, pos := range producer {
		if p == path || strings.HasPrefix(path, p+".") || strings.HasPrefix(p, path+".") {
			if !found || pos < best {
				best, found = pos, true
			}
		}
	}
	return best, found
}
