package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/server"
	"github.com/roach88/abeflag/internal/store"
)

// PassDetail is a pass record with its status transitions.
type PassDetail struct {
	ir.PassRecord
	Events []ir.PassEvent `json:"events"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [pass-id]",
		Short: "List finished passes or show one pass's transitions",
		Long: `List every finished pass in the order they finished, or show the status transitions
of one pass in the order they happened.

Pass history is kept by the sqlite and redis backends. Per-module
transitions are kept by the sqlite backend only.

Examples:
  abeflag --backend sqlite history
  abeflag --backend sqlite history 01927f3c-9a2e-7d4b-8c1f-3e5a7b9d1f20`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runHistory(opts *RootOptions, args []string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts, cmd)

	ws, err := openWorkspace(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.history == nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnsupported,
			fmt.Sprintf("the %s backend keeps no pass history", ws.cfg.Backend), nil)
	}

	if len(args) == 0 {
		passes, err := ws.history.ListPasses(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to list passes", err)
		}
		if formatter.JSON() {
			return formatter.Success(passes)
		}
		printPasses(formatter.Writer, passes)
		return nil
	}

	reader, ok := ws.history.(server.PassReader)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeUnsupported,
			fmt.Sprintf("the %s backend keeps no pass events", ws.cfg.Backend), nil)
	}
	rec, err := reader.ReadPass(ctx, args[0])
	if errors.Is(err, store.ErrPassNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("pass %s not found", args[0]), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to read pass", err)
	}
	events, err := reader.ReadPassEvents(ctx, args[0])
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to read pass events", err)
	}

	detail := PassDetail{PassRecord: rec, Events: events}
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: detail, PassID: rec.PassID}
		return formatter.Respond(resp)
	}
	printPassDetail(formatter.Writer, detail)
	return nil
}

func printPasses(w io.Writer, passes []ir.PassRecord) {
	if len(passes) == 0 {
		fmt.Fprintln(w, "No passes recorded.")
		return
	}
	for _, p := range passes {
		line := fmt.Sprintf("%s  %s  %-9s", p.PassID, p.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"), p.Outcome)
		if p.HaltedAt != "" {
			line += "  at " + p.HaltedAt
		}
		fmt.Fprintln(w, line)
	}
}

func printPassDetail(w io.Writer, d PassDetail) {
	fmt.Fprintf(w, "Pass %s (%s)\n", d.PassID, d.Outcome)
	fmt.Fprintf(w, "  started  %s\n", d.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "  finished %s\n", d.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"))
	if d.HaltedAt != "" {
		fmt.Fprintf(w, "  halted   %s\n", d.HaltedAt)
	}
	fmt.Fprintf(w, "  receipt  %s\n", d.ReceiptHash)
	fmt.Fprintln(w)
	for _, ev := range d.Events {
		fmt.Fprintf(w, "  %4d  %-20s %-8s %s\n", ev.Seq, ev.Module, ev.Status, ev.Notes)
	}
}
