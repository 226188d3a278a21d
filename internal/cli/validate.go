package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/manifest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Manifest  string                     `json:"manifest"`
	Modules   int                        `json:"modules"`
	Errors    []manifest.ValidationError `json:"errors,omitempty"`
	Warnings  []manifest.ValidationError `json:"warnings,omitempty"`
	Preflight []engine.PreflightIssue    `json:"preflight,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate a manifest without running it",
		Long: `Validate a manifest without running any module.

Checks the document structure, the firing order and every requires and
produces path, then reports lint warnings and resolves each fired module's
runner against the built-in and configured process runners.

A required module whose runner cannot be resolved fails validation; an
optional one is reported as a warning since the engine would SKIP it.

Exit codes:
  0 - Manifest is valid
  1 - Validation failed
  2 - Command error (unreadable file, bad config)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	path := cfg.Manifest
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeManifestLoad, "no manifest given and none configured", nil)
	}

	m, err := manifest.ParseFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeManifestLoad, "failed to load manifest", err)
	}
	formatter.VerboseLog("Parsed %s: %d module(s), %d fired", path, len(m.Modules), len(m.FiringOrder))

	if errs := m.Validate(); len(errs) > 0 {
		return outputValidationErrors(formatter, path, errs)
	}

	hasher, err := cfg.Hasher()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	registry, err := newRegistry(cfg, hasher)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "register runners", err)
	}

	result := ValidationResult{
		Valid:     true,
		Manifest:  path,
		Modules:   len(m.Modules),
		Warnings:  m.Lint(),
		Preflight: engine.Preflight(m, registry),
	}
	for _, issue := range result.Preflight {
		if issue.Required {
			result.Valid = false
		}
	}

	if !result.Valid {
		return outputPreflightFailure(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Manifest valid (%d module(s))\n", result.Modules)
	printWarnings(formatter, result)
	return nil
}

func printWarnings(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  ! %s %s: %s\n", warn.Code, warn.Field, warn.Message)
	}
	for _, issue := range result.Preflight {
		mark := "!"
		if issue.Required {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s %s\n", mark, issue.Kind, issue.Error())
	}
}

func outputPreflightFailure(formatter *OutputFormatter, result ValidationResult) error {
	msg := "required module runner cannot be resolved"
	if formatter.JSON() {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeManifest, Message: msg},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	printWarnings(formatter, result)
	return NewExitError(ExitFailure, msg)
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []manifest.ValidationError) error {
	if formatter.JSON() {
		result := ValidationResult{
			Valid:    false,
			Manifest: path,
			Errors:   errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeManifest,
				Message: errs[0].Error(),
			},
		}
		if err := formatter.Respond(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
