package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
	"github.com/roach88/abeflag/internal/scenario"
)

// IntakeFilesKey is the inputs key that receives the pass's file metadata.
const IntakeFilesKey = "intake_files_meta"

// Status notes written by the engine itself.
const (
	NoteRunning   = "Running…"
	NoteCompleted = "Completed"
)

// Engine runs orchestration passes. It is the only writer of the scenario
// while a pass runs; callers serialize Run.
type Engine struct {
	store    *scenario.Store
	registry *runner.Registry
	logger   *slog.Logger
	clock    *Clock
	passIDs  PassIDGenerator
	observer Observer
	metrics  *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the logical clock that stamps transitions. Use NewClockAt
// to continue after the last recorded seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithPassIDGenerator sets the pass id source. Default: UUIDv7Generator.
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(e *Engine) { e.passIDs = g }
}

// WithObserver receives every transition and finished pass.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithMetrics records pass and module metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over store, resolving runners from registry.
// Digests use the store's hasher.
func New(store *scenario.Store, registry *runner.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		logger:   slog.Default(),
		clock:    NewClock(),
		passIDs:  UUIDv7Generator{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions are per-pass inputs.
type RunOptions struct {
	// Inputs are written to inputs.<key>, in key order, before any module
	// runs.
	Inputs map[string]any

	// Files is the intake file metadata. When non-nil it is written to
	// inputs.intake_files_meta before any module runs.
	Files []runner.FileMeta

	// PassID overrides the generated pass id.
	PassID string
}

// ModuleOutcome is how one attempted module ended.
type ModuleOutcome struct {
	Module   string
	Status   ir.Status
	Notes    string
	Err      error
	Written  []string
	Duration time.Duration
}

// PassResult summarizes a pass.
type PassResult struct {
	PassID     string
	Outcome    ir.PassOutcome
	StartedAt  time.Time
	FinishedAt time.Time

	// Halted is set when a required module failed; HaltedAt names it.
	Halted   bool
	HaltedAt string

	// Cancelled is set when the context ended between modules.
	Cancelled bool

	// Fault is the persistence error that halted the pass, if any.
	Fault error

	// Outcomes lists attempted modules in firing order. Modules never
	// attempted are absent and remain PENDING.
	Outcomes []ModuleOutcome

	Certificate ir.AuditCertificate
	ReceiptHash string
}

// Module returns the outcome recorded for module.
func (r *PassResult) Module(module string) (ModuleOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Module == module {
			return o, true
		}
	}
	return ModuleOutcome{}, false
}

// Run executes one pass of m.
//
// Module failures are reported through module_status and the result, not
// as errors. Run returns an error only for an invalid manifest, a pass id
// the observer has already recorded, when the pass cannot be set up, or
// when the receipt cannot be persisted.
//
// Cancelling ctx stops the pass before the next module starts; the receipt
// is still written. Persistence is not bound to ctx cancellation.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest, opts RunOptions) (*PassResult, error) {
	if m == nil {
		return nil, errors.New("engine: nil manifest")
	}
	if errs := m.Validate(); len(errs) > 0 {
		return nil, manifest.ValidationErrors(errs)
	}

	passID := opts.PassID
	if passID == "" {
		passID = e.passIDs.Generate()
	}
	log := e.logger.With("pass", passID)
	pctx := context.WithoutCancel(ctx)

	if err := e.observer.PassStarting(pctx, passID); err != nil {
		return nil, fmt.Errorf("start pass %s: %w", passID, err)
	}

	res := &PassResult{PassID: passID, StartedAt: e.store.Now()}

	for _, key := range ir.SortedKeys(opts.Inputs) {
		if err := e.store.SetInput(pctx, key, opts.Inputs[key]); err != nil {
			return nil, fmt.Errorf("record input %s: %w", key, err)
		}
	}
	if opts.Files != nil {
		if err := e.store.SetInput(pctx, IntakeFilesKey, opts.Files); err != nil {
			return nil, fmt.Errorf("record intake files: %w", err)
		}
	}
	if err := e.store.SeedPending(pctx, m.Keys()); err != nil {
		return nil, fmt.Errorf("seed module status: %w", err)
	}

	log.Info("pass starting", "modules", len(m.FiringOrder))

	for _, key := range m.FiringOrder {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			log.Warn("pass cancelled", "next", key, "err", err)
			break
		}
		outcome, halt := e.runModule(ctx, pctx, passID, key, m.Modules[key], opts.Files, log)
		res.Outcomes = append(res.Outcomes, outcome)
		if halt {
			res.Halted = true
			res.HaltedAt = key
			if IsPersistenceFault(outcome.Err) {
				res.Fault = outcome.Err
			}
			break
		}
	}

	if err := e.finish(pctx, res); err != nil {
		return res, err
	}
	log.Info("pass finished",
		"outcome", res.Outcome,
		"halted_at", res.HaltedAt,
		"receipt", res.ReceiptHash,
	)
	return res, nil
}

// runModule drives one module from RUNNING to a terminal status. The bool
// result reports whether the pass must halt.
func (e *Engine) runModule(
	ctx, pctx context.Context,
	passID, key string,
	spec manifest.ModuleSpec,
	files []runner.FileMeta,
	log *slog.Logger,
) (ModuleOutcome, bool) {
	started := time.Now()
	log = log.With("module", key)

	if err := e.transition(pctx, passID, key, ir.StatusRunning, NoteRunning); err != nil {
		return e.settle(pctx, passID, key, spec, started, newModuleError(KindPersistenceFault, key, err), log)
	}

	if missing := e.missing(pctx, spec.Requires); len(missing) > 0 {
		return e.settle(pctx, passID, key, spec, started, newMissingDependency(key, missing), log)
	}

	run, merr := e.resolve(key, spec)
	if merr != nil {
		return e.settle(pctx, passID, key, spec, started, merr, log)
	}

	view := e.store.Snapshot(pctx)
	out, err := invoke(ctx, run, view, runner.Invocation{
		PassID: passID,
		Module: key,
		Config: runner.Config(spec.Config),
		Files:  files,
		Logger: log,
	})
	if err != nil {
		return e.settle(pctx, passID, key, spec, started, newModuleError(KindRunnerExecutionError, key, err), log)
	}

	written, merr := e.applyOutput(pctx, key, spec, out)
	if merr != nil {
		outcome, halt := e.settle(pctx, passID, key, spec, started, merr, log)
		outcome.Written = written
		return outcome, halt
	}

	if err := e.transition(pctx, passID, key, ir.StatusOK, NoteCompleted); err != nil {
		outcome, halt := e.settle(pctx, passID, key, spec, started, newModuleError(KindPersistenceFault, key, err), log)
		outcome.Written = written
		return outcome, halt
	}
	elapsed := time.Since(started)
	e.metrics.module(key, ir.StatusOK, elapsed)
	log.Debug("module completed", "written", written)
	return ModuleOutcome{
		Module:   key,
		Status:   ir.StatusOK,
		Notes:    NoteCompleted,
		Written:  written,
		Duration: elapsed,
	}, false
}

// settle records a classified failure and decides whether the pass halts.
func (e *Engine) settle(
	pctx context.Context,
	passID, key string,
	spec manifest.ModuleSpec,
	started time.Time,
	merr *ModuleError,
	log *slog.Logger,
) (ModuleOutcome, bool) {
	halt := merr.Fatal(spec.Required)
	status := statusFor(merr.Kind, halt)
	note := merr.Note()

	if err := e.transition(pctx, passID, key, status, note); err != nil && merr.Kind != KindPersistenceFault {
		merr = newModuleError(KindPersistenceFault, key, err)
		halt = true
		status = ir.StatusFail
		note = merr.Note()
		_ = e.transition(pctx, passID, key, status, note)
	}

	if halt {
		log.Error("module failed", "kind", merr.Kind, "err", merr.Message)
	} else {
		log.Warn("module did not complete", "kind", merr.Kind, "status", status, "err", merr.Message)
	}

	elapsed := time.Since(started)
	e.metrics.module(key, status, elapsed)
	return ModuleOutcome{
		Module:   key,
		Status:   status,
		Notes:    note,
		Err:      merr,
		Duration: elapsed,
	}, halt
}

// statusFor maps a failure to a terminal status. Failures that halt are
// FAIL. Otherwise a module that never started is SKIP and one that started
// and failed is WARN.
func statusFor(kind ErrorKind, halt bool) ir.Status {
	if halt {
		return ir.StatusFail
	}
	switch kind {
	case KindMissingDependency, KindRunnerUnavailable, KindRunnerContractViolation:
		return ir.StatusSkip
	default:
		return ir.StatusWarn
	}
}

// transition persists a status change and reports it to the observer.
func (e *Engine) transition(pctx context.Context, passID, key string, status ir.Status, note string) error {
	err := e.store.SetModuleStatus(pctx, key, status, note)
	ev := ir.PassEvent{
		PassID: passID,
		Seq:    e.clock.Next(),
		Module: key,
		Status: status,
		Notes:  note,
		At:     e.store.Now(),
	}
	if oerr := e.observer.ModuleTransition(pctx, ev); oerr != nil {
		e.logger.Warn("observer rejected transition", "pass", passID, "module", key, "err", oerr)
	}
	return err
}

// missing returns the requires paths that are absent or null, in manifest
// order.
func (e *Engine) missing(pctx context.Context, requires []string) []string {
	var out []string
	for _, path := range requires {
		if ir.IsAbsent(e.store.Get(pctx, path)) {
			out = append(out, path)
		}
	}
	return out
}

func (e *Engine) resolve(key string, spec manifest.ModuleSpec) (runner.Runner, *ModuleError) {
	run, err := e.registry.Resolve(spec.Runner, runner.Config(spec.Config))
	switch {
	case err == nil:
		return run, nil
	case errors.Is(err, runner.ErrNilRunner):
		return nil, &ModuleError{
			Kind:    KindRunnerContractViolation,
			Module:  key,
			Message: fmt.Sprintf("%s produced no Run implementation", spec.Runner),
			Err:     err,
		}
	case errors.Is(err, runner.ErrUnknownRunner):
		return nil, &ModuleError{
			Kind:    KindRunnerUnavailable,
			Module:  key,
			Message: "Runner not found: " + spec.Runner,
			Err:     err,
		}
	default:
		return nil, &ModuleError{
			Kind:    KindRunnerUnavailable,
			Module:  key,
			Message: "Runner unavailable: " + err.Error(),
			Err:     err,
		}
	}
}

// invoke calls the runner, turning a panic into an error.
func invoke(ctx context.Context, run runner.Runner, view *ir.Scenario, inv runner.Invocation) (out runner.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panicked: %v", r)
		}
	}()
	return run.Run(ctx, view, inv)
}
