package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/manifest"
	"github.com/roach88/abeflag/internal/runner"
	"github.com/roach88/abeflag/internal/scenario"
)

// applyOutput persists out under exactly one write interpretation and
// returns the hash names it recorded.
func (e *Engine) applyOutput(pctx context.Context, key string, spec manifest.ModuleSpec, out runner.Output) ([]string, *ModuleError) {
	switch out.Kind() {
	case runner.KindMulti:
		writes := out.Writes()
		paths := ir.SortedKeys(writes)
		for _, path := range paths {
			if err := manifest.CheckOutputPath(path); err != nil {
				return nil, newModuleError(KindRunnerExecutionError, key, fmt.Errorf("write %s: %w", path, err))
			}
		}
		if a, b, ok := overlapping(paths); ok {
			return nil, newModuleError(KindRunnerExecutionError, key, fmt.Errorf("write %s: overlaps %s", b, a))
		}
		written := make([]string, 0, len(paths))
		for _, path := range paths {
			if merr := e.writeAndHash(pctx, key, path, writes[path]); merr != nil {
				return written, merr
			}
			written = append(written, path)
		}
		return written, nil

	default:
		if target, ok := spec.Destination(); ok {
			if merr := e.writeAndHash(pctx, key, target, out.Value()); merr != nil {
				return nil, merr
			}
			return []string{target}, nil
		}
		if out.Value() == nil {
			return []string{}, nil
		}
		name := ir.NSModuleOutput + "." + key
		if _, err := e.store.StoreHash(pctx, name, out.Value()); err != nil {
			return nil, classifyWrite(key, name, err)
		}
		return []string{name}, nil
	}
}

// overlapping finds two paths where one is the other or an ancestor of it.
// Writing both would drop the first path's hash.
func overlapping(paths []string) (string, string, bool) {
	for i, a := range paths {
		for _, b := range paths[i+1:] {
			if a == b || strings.HasPrefix(b, a+".") || strings.HasPrefix(a, b+".") {
				return a, b, true
			}
		}
	}
	return "", "", false
}

// writeAndHash sets path and hashes the value as stored, so the digest
// matches what a later read of path returns.
func (e *Engine) writeAndHash(pctx context.Context, key, path string, value any) *ModuleError {
	if err := e.store.Set(pctx, path, value); err != nil {
		return classifyWrite(key, path, err)
	}
	stored, _ := e.store.Get(pctx, path)
	if _, err := e.store.StoreHash(pctx, path, stored); err != nil {
		return classifyWrite(key, path, err)
	}
	return nil
}

// classifyWrite separates storage failures from values the runner should
// not have produced.
func classifyWrite(key, path string, err error) *ModuleError {
	err = fmt.Errorf("write %s: %w", path, err)
	if errors.Is(err, scenario.ErrSave) {
		return newModuleError(KindPersistenceFault, key, err)
	}
	return newModuleError(KindRunnerExecutionError, key, err)
}
