package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/abeflag/internal/ir"
)

// Runner implements one module.
//
// Run must return an error (not a zero Output) when it fails internally so
// the orchestrator can classify the failure. view is a private copy; changes
// to it are discarded.
type Runner interface {
	Run(ctx context.Context, view *ir.Scenario, inv Invocation) (Output, error)
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, view *ir.Scenario, inv Invocation) (Output, error)

// Run calls f.
func (f Func) Run(ctx context.Context, view *ir.Scenario, inv Invocation) (Output, error) {
	return f(ctx, view, inv)
}

// Invocation is the per-call context handed to a Runner.
type Invocation struct {
	PassID string
	Module string
	Config Config
	Files  []FileMeta
	Logger *slog.Logger
}

// FileMeta describes one intake file supplied to a pass. Contents are never
// stored in the scenario.
type FileMeta struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"last_modified"`
}
