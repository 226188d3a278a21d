package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/abeflag/internal/ir"
)

// Built-in runner names.
const (
	BuiltinStatic = "static"
	BuiltinCopy   = "copy"
	BuiltinMerge  = "merge"
	BuiltinDigest = "digest"
	BuiltinFiles  = "files"
	BuiltinFail   = "fail"
)

// RegisterBuiltins installs the built-in runners. hasher backs the digest
// runner.
func RegisterBuiltins(r *Registry, hasher ir.Hasher) error {
	builtins := map[string]Factory{
		BuiltinStatic: newStatic,
		BuiltinCopy:   newCopy,
		BuiltinMerge:  newMerge,
		BuiltinDigest: func(cfg Config) (Runner, error) { return newDigest(cfg, hasher) },
		BuiltinFiles:  newFiles,
		BuiltinFail:   newFail,
	}
	for _, name := range []string{BuiltinStatic, BuiltinCopy, BuiltinMerge, BuiltinDigest, BuiltinFiles, BuiltinFail} {
		if err := r.Register(name, builtins[name]); err != nil {
			return err
		}
	}
	return nil
}

// static returns config.value, or config.writes as a multi-write.
type staticConfig struct {
	Value  any            `json:"value"`
	Writes map[string]any `json:"writes"`
}

func newStatic(cfg Config) (Runner, error) {
	var c staticConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if c.Writes != nil {
		if c.Value != nil {
			return nil, errors.New("static: set either value or writes, not both")
		}
		return Func(func(context.Context, *ir.Scenario, Invocation) (Output, error) {
			return Multi(c.Writes), nil
		}), nil
	}
	return Func(func(context.Context, *ir.Scenario, Invocation) (Output, error) {
		return Single(c.Value), nil
	}), nil
}

// copy returns the value at config.from.
type copyConfig struct {
	From string `json:"from"`
}

func newCopy(cfg Config) (Runner, error) {
	var c copyConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if c.From == "" {
		return nil, errors.New("copy: config.from is required")
	}
	return Func(func(_ context.Context, view *ir.Scenario, _ Invocation) (Output, error) {
		v, ok := view.Lookup(c.From)
		if ir.IsAbsent(v, ok) {
			return Output{}, fmt.Errorf("nothing at %s", c.From)
		}
		return Single(v), nil
	}), nil
}

// merge combines the objects at config.from into one object; later paths
// win on key conflicts.
type mergeConfig struct {
	From []string `json:"from"`
}

func newMerge(cfg Config) (Runner, error) {
	var c mergeConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if len(c.From) == 0 {
		return nil, errors.New("merge: config.from must list at least one path")
	}
	return Func(func(_ context.Context, view *ir.Scenario, _ Invocation) (Output, error) {
		out := map[string]any{}
		for _, path := range c.From {
			v, ok := view.Lookup(path)
			if ir.IsAbsent(v, ok) {
				continue
			}
			obj, isObj := v.(map[string]any)
			if !isObj {
				return Output{}, fmt.Errorf("%s is not an object", path)
			}
			for k, val := range obj {
				out[k] = val
			}
		}
		return Single(out), nil
	}), nil
}

// digest fingerprints the value at config.from.
type digestConfig struct {
	From string `json:"from"`
}

// DigestResult is what the digest runner returns.
type DigestResult struct {
	Path      string `json:"path"`
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

func newDigest(cfg Config, hasher ir.Hasher) (Runner, error) {
	var c digestConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if c.From == "" {
		return nil, errors.New("digest: config.from is required")
	}
	return Func(func(_ context.Context, view *ir.Scenario, _ Invocation) (Output, error) {
		v, ok := view.Lookup(c.From)
		if ir.IsAbsent(v, ok) {
			return Output{}, fmt.Errorf("nothing at %s", c.From)
		}
		digest, err := hasher.Hash(v)
		if err != nil {
			return Output{}, err
		}
		return Single(DigestResult{Path: c.From, Algorithm: string(hasher.Algorithm()), Digest: digest}), nil
	}), nil
}

// files returns the intake file metadata of the pass.
func newFiles(cfg Config) (Runner, error) {
	if err := cfg.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return Func(func(_ context.Context, _ *ir.Scenario, inv Invocation) (Output, error) {
		files := inv.Files
		if files == nil {
			files = []FileMeta{}
		}
		return Single(map[string]any{"count": len(files), "files": files}), nil
	}), nil
}

// fail always returns an error with config.message.
type failConfig struct {
	Message string `json:"message"`
}

func newFail(cfg Config) (Runner, error) {
	var c failConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if c.Message == "" {
		c.Message = "module failed"
	}
	return Func(func(context.Context, *ir.Scenario, Invocation) (Output, error) {
		return Output{}, errors.New(c.Message)
	}), nil
}
