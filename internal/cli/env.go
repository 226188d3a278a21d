package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/abeflag/internal/config"
	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/logging"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
	"github.com/roach88/abeflag/internal/scenario"
	"github.com/roach88/abeflag/internal/server"
	"github.com/roach88/abeflag/internal/store"
)

// workspace is everything a command needs to touch the scenario: the
// resolved config, the repository for the chosen backend, the Store over
// it and a runner registry.
type workspace struct {
	cfg      *config.Config
	logger   *slog.Logger
	hasher   ir.Hasher
	store    *scenario.Store
	registry *runner.Registry

	// observer and history are set for backends that keep pass history.
	observer engine.Observer
	history  server.History

	// sqlite is set for the sqlite backend, the only one with events.
	// lastSeq is its highest recorded event seq.
	sqlite  *store.Store
	lastSeq int64

	closers []func() error
}

// Close releases backend connections.
func (w *workspace) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i](); err != nil {
			w.logger.Warn("close backend", "err", err)
		}
	}
}

// newFormatter builds the formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the project file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	path, required := opts.ConfigPath, opts.ConfigPath != ""
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	if opts.Backend != "" {
		cfg.Backend = config.Backend(opts.Backend)
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}
	if opts.RedisAddr != "" {
		cfg.Redis.Addr = opts.RedisAddr
	}
	if opts.Hash != "" {
		cfg.HashAlgorithm = opts.Hash
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openWorkspace resolves config and opens the backend. Failures are
// reported through f and returned as ExitErrors.
func openWorkspace(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*workspace, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logFormat := logging.FormatText
	if f.JSON() {
		logFormat = logging.FormatJSON
	}
	logger := logging.NewWriter(f.GetErrWriter(), level, logFormat)

	hasher, err := cfg.Hasher()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	ws := &workspace{cfg: cfg, logger: logger, hasher: hasher}
	repo, err := ws.openRepository(ctx)
	if err != nil {
		ws.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeBackend, fmt.Sprintf("%s backend unavailable", cfg.Backend), err)
	}
	f.VerboseLog("Using %s backend", cfg.Backend)

	ws.store = scenario.New(repo,
		scenario.WithHasher(hasher),
		scenario.WithEngine(cfg.EngineInfo()),
		scenario.WithLogger(logger),
	)

	ws.registry, err = newRegistry(cfg, hasher)
	if err != nil {
		ws.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "register runners", err)
	}
	return ws, nil
}

// newRegistry holds the built-in runners plus the configured processes.
func newRegistry(cfg *config.Config, hasher ir.Hasher) (*runner.Registry, error) {
	reg := runner.NewRegistry()
	if err := runner.RegisterBuiltins(reg, hasher); err != nil {
		return nil, err
	}
	if err := runner.RegisterProcesses(reg, cfg.Processes); err != nil {
		return nil, err
	}
	return reg, nil
}

func (w *workspace) openRepository(ctx context.Context) (scenario.Repository, error) {
	switch w.cfg.Backend {
	case config.BackendMemory:
		return scenario.NewMemoryRepository(), nil

	case config.BackendFile:
		return store.NewFileRepository(w.cfg.ResolvedStatePath()), nil

	case config.BackendSQLite:
		path := w.cfg.ResolvedStatePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		db, err := store.Open(path, store.WithScenarioKey(w.cfg.ScenarioKey))
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, db.Close)
		if w.lastSeq, err = db.LastSeq(ctx); err != nil {
			return nil, err
		}
		w.sqlite = db
		w.observer = db
		w.history = db
		return db, nil

	case config.BackendRedis:
		rc := w.cfg.Redis
		client, err := store.DialRedis(ctx, rc.Addr, rc.Password, rc.DB)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, client.Close)
		ttl, err := rc.Expiration()
		if err != nil {
			return nil, err
		}
		ropts := []store.RedisOption{
			store.WithRedisTTL(ttl),
			store.WithPassRetention(rc.KeepPasses),
		}
		if rc.Prefix != "" {
			ropts = append(ropts, store.WithRedisPrefix(rc.Prefix))
		}
		repo := store.NewRedisRepository(client, w.cfg.ScenarioKey, ropts...)
		w.observer = repo
		w.history = repo
		return repo, nil
	}
	return nil, fmt.Errorf("unknown backend %q", w.cfg.Backend)
}

// engine builds an Engine over the workspace.
func (w *workspace) engine(opts ...engine.Option) *engine.Engine {
	base := []engine.Option{engine.WithLogger(w.logger)}
	if w.sqlite != nil {
		base = append(base, engine.WithClock(engine.NewClockAt(w.lastSeq)))
	}
	if w.observer != nil {
		base = append(base, engine.WithObserver(w.observer))
	}
	return engine.New(w.store, w.registry, append(base, opts...)...)
}

// manifestPath picks the argument or the configured manifest.
func (w *workspace) manifestPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if w.cfg.Manifest != "" {
		return w.cfg.Manifest, nil
	}
	return "", errors.New("no manifest given and none configured")
}

// loadManifest reads and validates the manifest, reporting failures with
// the E003/E004 codes.
func loadManifest(path string, f *OutputFormatter) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if err == nil {
		return m, nil
	}
	if verrs, ok := manifest.AsValidationErrors(err); ok {
		return nil, outputValidationErrors(f, path, verrs)
	}
	return nil, f.Fail(ExitCommandError, ErrCodeManifestLoad, "failed to load manifest", err)
}
