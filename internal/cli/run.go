package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Files  []string
	Inputs []string
	PassID string

	// PassIDGenerator allows overriding pass id generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	PassIDGenerator engine.PassIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [manifest]",
		Short: "Run one pass of a manifest",
		Long: `Run every module in the manifest's firing order once over the scenario.

Each module's status moves from PENDING through RUNNING to OK, WARN, FAIL
or SKIP. A failing required module halts the pass; later modules stay
PENDING. The pass always ends by writing a fresh audit certificate.

Example:
  abeflag run manifest.yaml
  abeflag run --file w2.pdf --input filing_status='"single"' manifest.yaml
  abeflag --backend sqlite run --pass-id nightly-1 manifest.yaml

Exit codes:
  0 - Pass completed
  1 - Pass halted or was cancelled
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Files, "file", nil, "intake file to describe in inputs.intake_files_meta (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "set inputs.<key> to a JSON value before the pass, as key=json (repeatable)")
	cmd.Flags().StringVar(&opts.PassID, "pass-id", "", "pass id (default: generated UUIDv7)")

	return cmd
}

func runPass(opts *RunOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer ws.Close()

	path, err := ws.manifestPath(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeManifestLoad, err.Error(), nil)
	}
	m, err := loadManifest(path, formatter)
	if err != nil {
		return err
	}

	files, err := describeFiles(opts.Files)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "intake file unavailable", err)
	}

	inputs, err := parseInputs(opts.Inputs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid --input", err)
	}
	values := make(map[string]any, len(inputs))
	for _, in := range inputs {
		values[in.key] = in.value
		formatter.VerboseLog("Set inputs.%s", in.key)
	}

	var engineOpts []engine.Option
	if opts.PassIDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithPassIDGenerator(opts.PassIDGenerator))
	}

	ws.logger.Info("pass starting", "manifest", path, "modules", len(m.FiringOrder))
	res, err := ws.engine(engineOpts...).Run(ctx, m, engine.RunOptions{Inputs: values, Files: files, PassID: opts.PassID})
	if errors.Is(err, ir.ErrPassExists) {
		return formatter.Fail(ExitCommandError, ErrCodePassExists, fmt.Sprintf("pass %s already recorded", opts.PassID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "pass could not be recorded", err)
	}

	return outputPass(formatter, m, res)
}

// outputPass renders res and maps its outcome to an exit code. Module
// names come from m.
func outputPass(formatter *OutputFormatter, m *manifest.Manifest, res *engine.PassResult) error {
	summary := res.Summary()

	var exitErr error
	var cliErr *CLIError
	switch res.Outcome {
	case ir.PassHalted:
		msg := fmt.Sprintf("pass halted at %s", res.HaltedAt)
		if res.Fault != nil {
			msg = fmt.Sprintf("pass halted at %s: %v", res.HaltedAt, res.Fault)
		}
		cliErr = &CLIError{Code: ErrCodePassHalted, Message: msg}
		exitErr = NewExitError(ExitFailure, msg)
	case ir.PassCancelled:
		cliErr = &CLIError{Code: ErrCodeGeneric, Message: "pass cancelled"}
		exitErr = NewExitError(ExitFailure, "pass cancelled")
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: summary, PassID: res.PassID}
		if cliErr != nil {
			resp.Status = "error"
			resp.Error = cliErr
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	rows := make([]StatusRow, 0, len(summary.Modules))
	for _, mod := range summary.Modules {
		rows = append(rows, StatusRow{
			Module: mod.Module,
			Name:   m.Modules[mod.Module].Label(mod.Module),
			Status: mod.Status,
			Notes:  mod.Notes,
		})
	}
	if len(rows) > 0 {
		renderStatusTable(w, rows)
		fmt.Fprintln(w)
	}
	switch res.Outcome {
	case ir.PassCompleted:
		fmt.Fprintf(w, "✓ Pass %s completed\n", res.PassID)
	default:
		fmt.Fprintf(w, "✗ Pass %s %s\n", res.PassID, cliErr.Message)
	}
	fmt.Fprintf(w, "  receipt %s\n", res.ReceiptHash)
	return exitErr
}

type inputValue struct {
	key   string
	value any
}

// parseInputs reads key=json pairs.
func parseInputs(raw []string) ([]inputValue, error) {
	out := make([]inputValue, 0, len(raw))
	for _, r := range raw {
		key, data, ok := strings.Cut(r, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q: expected key=json", r)
		}
		if err := ir.Writable(ir.NSInputs + "." + key); err != nil {
			return nil, err
		}
		value, err := ir.DecodeValue([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, inputValue{key: key, value: value})
	}
	return out, nil
}

// describeFiles stats each path. Contents are never read.
func describeFiles(paths []string) ([]runner.FileMeta, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	files := make([]runner.FileMeta, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		typ := mime.TypeByExtension(filepath.Ext(p))
		if typ == "" {
			typ = "application/octet-stream"
		}
		files = append(files, runner.FileMeta{
			Name:         filepath.Base(p),
			Size:         info.Size(),
			Type:         typ,
			LastModified: info.ModTime().UTC(),
		})
	}
	return files, nil
}
