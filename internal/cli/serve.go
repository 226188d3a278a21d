package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Manifest string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scenario over HTTP",
		Long: `Serve the scenario, its receipt and pass history over HTTP.

POST /passes runs one pass of the manifest. One pass runs at a time; a
second request while a pass is running gets 409. Prometheus metrics are
served at /metrics.

Examples:
  abeflag serve --manifest manifest.yaml
  abeflag --backend sqlite serve --addr :9090 --manifest manifest.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest run by POST /passes (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

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

	var m *manifest.Manifest
	path := opts.Manifest
	if path == "" {
		path = ws.cfg.Manifest
	}
	if path != "" {
		if m, err = loadManifest(path, formatter); err != nil {
			return err
		}
	} else {
		ws.logger.Warn("no manifest configured; POST /passes is disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := engine.NewMetrics(reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to register metrics", err)
	}

	srv := server.New(server.Config{
		Store:    ws.store,
		Engine:   ws.engine(engine.WithMetrics(metrics)),
		Manifest: m,
		History:  ws.history,
		Gatherer: reg,
		Logger:   ws.logger,
	})

	addr := opts.Addr
	if addr == "" {
		addr = ws.cfg.ListenAddr
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "server error", err)
	}
	ws.logger.Info("server stopped")
	return nil
}
