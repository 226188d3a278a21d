package engine

import (
	"context"

	"github.com/roach88/abeflag/internal/ir"
)

// Observer receives the pass history as it happens. The SQLite store and
// the Redis repository implement it.
//
// PassStarting runs before the pass touches any state and may refuse the
// pass id with ir.ErrPassExists; Run then returns that error. Errors from
// the other methods never change module outcomes; the engine logs them.
type Observer interface {
	PassStarting(ctx context.Context, passID string) error
	ModuleTransition(ctx context.Context, ev ir.PassEvent) error
	PassFinished(ctx context.Context, rec ir.PassRecord) error
}

type nopObserver struct{}

func (nopObserver) PassStarting(context.Context, string) error { return nil }
func (nopObserver) ModuleTransition(context.Context, ir.PassEvent) error { return nil }
func (nopObserver) PassFinished(context.Context, ir.PassRecord) error    { return nil }
