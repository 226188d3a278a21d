package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/integrity"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute stored hashes and compare",
		Long: `Recompute every hash recorded in the scenario from the value it
certifies and report which still match.

Hashes that do not address a readable value, such as module_output.<key>,
are reported as unresolved and do not fail verification.

Exit codes:
  0 - No stored hash contradicts the scenario
  1 - One or more hashes mismatched
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts, cmd)

	ws, err := openWorkspace(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer ws.Close()

	report := integrity.Verify(ws.store.Snapshot(ctx), ws.hasher)

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.OK() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeIntegrity,
				Message: fmt.Sprintf("%d hash(es) mismatched", report.Mismatched),
			}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, e := range report.Entries {
			switch e.Result {
			case integrity.Mismatch:
				fmt.Fprintf(w, "✗ %s\n  stored   %s\n  computed %s\n", e.Name, e.Stored, e.Computed)
			case integrity.Unresolved:
				formatter.VerboseLog("- %s (unresolved)", e.Name)
			default:
				formatter.VerboseLog("✓ %s", e.Name)
			}
		}
		fmt.Fprintf(w, "%d verified, %d mismatched, %d unresolved (%s)\n",
			report.Verified, report.Mismatched, report.Unresolved, report.Algorithm)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d hash(es) mismatched", ErrCodeIntegrity, report.Mismatched))
	}
	return nil
}
