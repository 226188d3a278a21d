package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes why a module did not complete.
type ErrorKind string

const (
	// KindMissingDependency: one or more requires paths were unresolved.
	KindMissingDependency ErrorKind = "MISSING_DEPENDENCY"

	// KindRunnerUnavailable: the runner reference is not registered or its
	// factory rejected the module config.
	KindRunnerUnavailable ErrorKind = "RUNNER_UNAVAILABLE"

	// KindRunnerContractViolation: the registry produced no usable runner.
	KindRunnerContractViolation ErrorKind = "RUNNER_CONTRACT_VIOLATION"

	// KindRunnerExecutionError: the runner returned an error, panicked, or
	// produced output the write contract rejects.
	KindRunnerExecutionError ErrorKind = "RUNNER_EXECUTION_ERROR"

	// KindPersistenceFault: the scenario could not be persisted.
	KindPersistenceFault ErrorKind = "PERSISTENCE_FAULT"
)

// ModuleError is a classified module failure. Its Note is what lands in
// module_status, so it must describe the failure on its own.
type ModuleError struct {
	Kind    ErrorKind
	Module  string
	Message string

	// Missing lists the unresolved requires paths for MISSING_DEPENDENCY.
	Missing []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %s (module=%s)", e.Kind, e.Message, e.Module)
}

// Unwrap returns the underlying cause.
func (e *ModuleError) Unwrap() error {
	return e.Err
}

// Note renders the failure for module_status.notes.
func (e *ModuleError) Note() string {
	switch e.Kind {
	case KindMissingDependency:
		return "Missing required inputs: " + strings.Join(e.Missing, ", ")
	case KindRunnerUnavailable:
		return e.Message
	case KindRunnerContractViolation:
		return "Runner contract violation: " + e.Message
	case KindPersistenceFault:
		return "Persistence fault: " + e.Message
	default:
		return "Error: " + e.Message
	}
}

// Fatal reports whether the failure halts the pass for a module with the
// given required flag.
func (e *ModuleError) Fatal(required bool) bool {
	return required || e.Kind == KindPersistenceFault
}

func newMissingDependency(module string, missing []string) *ModuleError {
	return &ModuleError{
		Kind:    KindMissingDependency,
		Module:  module,
		Message: "unresolved requires " + strings.Join(missing, ", "),
		Missing: missing,
	}
}

func newModuleError(kind ErrorKind, module string, err error) *ModuleError {
	return &ModuleError{Kind: kind, Module: module, Message: err.Error(), Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var me *ModuleError
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return "", false
}

// IsMissingDependency reports whether err is a MISSING_DEPENDENCY failure.
func IsMissingDependency(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindMissingDependency
}

// IsRunnerUnavailable reports whether err is a RUNNER_UNAVAILABLE failure.
func IsRunnerUnavailable(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRunnerUnavailable
}

// IsContractViolation reports whether err is a RUNNER_CONTRACT_VIOLATION
// failure.
func IsContractViolation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRunnerContractViolation
}

// IsExecutionError reports whether err is a RUNNER_EXECUTION_ERROR failure.
func IsExecutionError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRunnerExecutionError
}

// IsPersistenceFault reports whether err is a PERSISTENCE_FAULT.
func IsPersistenceFault(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPersistenceFault
}
