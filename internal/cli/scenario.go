package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/ir"
)

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect or edit the scenario document",
		Long: `Inspect or edit the scenario document outside a pass.

Examples:
  abeflag scenario show
  abeflag scenario show derived.income
  abeflag scenario set inputs.filing_status '"single"'
  abeflag scenario reset`,
	}

	cmd.AddCommand(newScenarioShowCommand(rootOpts))
	cmd.AddCommand(newScenarioSetCommand(rootOpts))
	cmd.AddCommand(newScenarioResetCommand(rootOpts))

	return cmd
}

func newScenarioShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show [path]",
		Short:         "Print the scenario, or the value at a dotted path",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			formatter := newFormatter(rootOpts, cmd)

			ws, err := openWorkspace(ctx, rootOpts, formatter)
			if err != nil {
				return err
			}
			defer ws.Close()

			sc := ws.store.Snapshot(ctx)
			var value any = sc
			if len(args) > 0 {
				v, ok := sc.Lookup(args[0])
				if !ok {
					return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("%s not found", args[0]), nil)
				}
				value = v
			}

			if formatter.JSON() {
				return formatter.Success(value)
			}
			data, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode scenario", err)
			}
			fmt.Fprintln(formatter.Writer, string(data))
			return nil
		},
	}
}

func newScenarioSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Write a JSON value at a dotted path",
		Long: `Write a JSON value at a dotted path under inputs, derived or receipts.

Any stored hash covering the path is dropped; the next pass that writes the
path records a fresh one.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			formatter := newFormatter(rootOpts, cmd)

			value, err := ir.DecodeValue([]byte(args[1]))
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "value is not valid JSON", err)
			}

			ws, err := openWorkspace(ctx, rootOpts, formatter)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.store.Set(ctx, args[0], value); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to set %s", args[0]), err)
			}

			if formatter.JSON() {
				return formatter.Success(map[string]any{"path": args[0], "value": value})
			}
			fmt.Fprintf(formatter.Writer, "✓ Set %s\n", args[0])
			return nil
		},
	}
}

func newScenarioResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "reset",
		Short:         "Discard the scenario and start an empty one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			formatter := newFormatter(rootOpts, cmd)

			ws, err := openWorkspace(ctx, rootOpts, formatter)
			if err != nil {
				return err
			}
			defer ws.Close()

			sc, err := ws.store.Reset(ctx)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to reset scenario", err)
			}

			if formatter.JSON() {
				return formatter.Success(sc)
			}
			fmt.Fprintln(formatter.Writer, "✓ Scenario reset")
			return nil
		},
	}
}
