package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/ir"
)

// ReceiptOptions holds flags for the receipt command.
type ReceiptOptions struct {
	*RootOptions
	Output string // output file path
}

// ReceiptResult is the JSON form of the receipt command.
type ReceiptResult struct {
	Hash        string              `json:"hash"`
	Certificate ir.AuditCertificate `json:"certificate"`
	Output      string              `json:"output,omitempty"`
}

// NewReceiptCommand creates the receipt command.
func NewReceiptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Print the latest audit certificate",
		Long: `Print the audit certificate written by the most recent pass, along with
its stored hash.

With -o the certificate is written as canonical JSON, byte for byte the
input the receipt hash was computed over.

Examples:
  abeflag receipt
  abeflag receipt -o receipt.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceipt(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical certificate to this file")

	return cmd
}

func runReceipt(opts *ReceiptOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	ws, err := openWorkspace(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer ws.Close()

	sc := ws.store.Snapshot(ctx)
	tree, ok := sc.Lookup(ir.ReceiptPath)
	if !ok {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, "no audit certificate yet", nil)
	}
	cert, err := ir.DecodeCertificate(tree)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "stored certificate is unreadable", err)
	}
	result := ReceiptResult{Hash: sc.Hashes[ir.ReceiptPath], Certificate: cert}

	if opts.Output != "" {
		data, err := ir.MarshalCanonical(tree)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode certificate", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write certificate", err)
		}
		result.Output = opts.Output
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Receipt %s\n", result.Hash)
	fmt.Fprintf(w, "  engine   %s %s %s\n", cert.Engine.ID, cert.Engine.Name, cert.Engine.Version)
	fmt.Fprintf(w, "  updated  %s\n", cert.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(w, "  modules  %d\n", len(cert.ModuleStatus))
	fmt.Fprintf(w, "  hashes   %d\n", len(cert.Hashes))
	if result.Output != "" {
		fmt.Fprintf(w, "✓ Certificate written to %s\n", result.Output)
	}
	return nil
}
