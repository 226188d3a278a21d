package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/abeflag/internal/engine"
	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/logging"
	"github.com/roach88/abeflag/internal/runner"
	"github.com/roach88/abeflag/internal/scenario"
	"github.com/roach88/abeflag/internal/testutil"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Errors lists failed expectations.
	Errors []string `json:"errors"`

	// Passes holds each engine pass in order.
	Passes []*engine.PassResult `json:"-"`

	// Calls counts invocations per scripted runner.
	Calls map[string]int `json:"calls"`

	// Final is the scenario document after the last pass.
	Final *ir.Scenario `json:"-"`
}

func newResult() *Result {
	return &Result{Pass: true, Errors: []string{}, Calls: map[string]int{}}
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Last returns the final pass.
func (r *Result) Last() *engine.PassResult {
	if len(r.Passes) == 0 {
		return nil
	}
	return r.Passes[len(r.Passes)-1]
}

// callCounter counts scripted runner invocations.
type callCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *callCounter) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

// scripted turns a RunnerScript into a runner.
func scripted(name string, script RunnerScript, calls *callCounter) runner.Runner {
	return runner.Func(func(context.Context, *ir.Scenario, runner.Invocation) (runner.Output, error) {
		calls.inc(name)
		switch {
		case script.Panic != "":
			panic(script.Panic)
		case script.Error != "":
			return runner.Output{}, errors.New(script.Error)
		case script.Writes != nil:
			return runner.Multi(script.Writes), nil
		default:
			return runner.Single(script.Returns), nil
		}
	})
}

// Run executes sc on a fresh in-memory scenario.
//
// The returned error covers setup problems (bad manifest, runner name
// collisions); unmet expectations are reported in Result.
func Run(sc *Scenario) (*Result, error) {
	ctx := context.Background()
	m, err := sc.ParsedManifest()
	if err != nil {
		return nil, err
	}

	st := scenario.New(scenario.NewMemoryRepository(),
		scenario.WithClock(testutil.NewFrozenClock(testutil.Epoch).Now),
		scenario.WithLogger(logging.NewNop()),
	)

	reg := runner.NewRegistry()
	if err := runner.RegisterBuiltins(reg, st.Hasher()); err != nil {
		return nil, err
	}
	calls := &callCounter{counts: map[string]int{}}
	names := make([]string, 0, len(sc.Runners))
	for name := range sc.Runners {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		calls.counts[name] = 0
		if err := reg.RegisterRunner(name, scripted(name, sc.Runners[name], calls)); err != nil {
			return nil, fmt.Errorf("scripted runner: %w", err)
		}
	}

	for _, key := range ir.SortedKeys(sc.Inputs) {
		if err := st.SetInput(ctx, key, sc.Inputs[key]); err != nil {
			return nil, fmt.Errorf("seed inputs.%s: %w", key, err)
		}
	}

	var files []runner.FileMeta
	for _, f := range sc.Files {
		files = append(files, runner.FileMeta{Name: f.Name, Size: f.Size, Type: f.Type, LastModified: testutil.Epoch})
	}

	eng := engine.New(st, reg,
		engine.WithLogger(logging.NewNop()),
		engine.WithPassIDGenerator(testutil.NewSequentialPassIDs(sc.Name)),
	)

	passes := sc.Passes
	if passes == 0 {
		passes = 1
	}
	result := newResult()
	for i := 0; i < passes; i++ {
		res, err := eng.Run(ctx, m, engine.RunOptions{Files: files})
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", i+1, err)
		}
		result.Passes = append(result.Passes, res)
	}

	result.Final = st.Snapshot(ctx)
	calls.mu.Lock()
	for name, n := range calls.counts {
		result.Calls[name] = n
	}
	calls.mu.Unlock()

	check(sc, result)
	return result, nil
}
