package runner

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownRunner is returned by Resolve for unregistered names.
	ErrUnknownRunner = errors.New("runner not registered")

	// ErrNilRunner is returned by Resolve when a factory produced no runner.
	ErrNilRunner = errors.New("runner factory returned no runner")
)

// Factory constructs a runner with the module's configuration.
type Factory func(Config) (Runner, error)

// Registry maintains known runner factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("runner: name is required")
	}
	if factory == nil {
		return fmt.Errorf("runner: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("runner: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// RegisterRunner installs a runner that ignores its configuration.
func (r *Registry) RegisterRunner(name string, run Runner) error {
	return r.Register(name, func(Config) (Runner, error) { return run, nil })
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs the runner registered as name.
func (r *Registry) Resolve(name string, cfg Config) (Runner, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRunner, name)
	}
	if cfg == nil {
		cfg = Config{}
	}
	run, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("runner %s: %w", name, err)
	}
	if isNil(run) {
		return nil, fmt.Errorf("%w: %s", ErrNilRunner, name)
	}
	return run, nil
}

func isNil(run Runner) bool {
	if run == nil {
		return true
	}
	if f, ok := run.(Func); ok && f == nil {
		return true
	}
	return false
}

// Names returns a sorted list of registered runner names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
