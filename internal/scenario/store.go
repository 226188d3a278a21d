package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/abeflag/internal/ir"
)

// ErrIllegalTransition is returned by SetModuleStatus for a move the module
// status machine does not allow, such as PENDING to OK.
var ErrIllegalTransition = errors.New("illegal status transition")

// Store is the state store. It is not safe for concurrent use: a pass has
// exactly one writer.
type Store struct {
	repo    Repository
	now     func() time.Time
	engine  ir.EngineInfo
	hasher  ir.Hasher
	logger  *slog.Logger
	current *ir.Scenario
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEngine sets the identity stamped on new scenarios.
func WithEngine(info ir.EngineInfo) Option {
	return func(s *Store) { s.engine = info }
}

// WithHasher sets the digest used by StoreHash.
func WithHasher(h ir.Hasher) Option {
	return func(s *Store) { s.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store backed by repo.
func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		now:    time.Now,
		engine: ir.DefaultEngine(),
		hasher: ir.DefaultHasher(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hasher returns the digest used by StoreHash.
func (s *Store) Hasher() ir.Hasher {
	return s.hasher
}

// Now returns the store's current wall-clock time in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// Load reads the persisted scenario. It returns nil when nothing is
// persisted or the stored document cannot be parsed; it never fails.
func (s *Store) Load(ctx context.Context) *ir.Scenario {
	sc, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("discarding unreadable scenario", "error", err)
		}
		return nil
	}
	return sc
}

// GetOrCreate returns the current scenario, creating and persisting an empty
// one if none exists. The returned document is owned by the Store: change it
// through Store methods or hand it back to Save.
func (s *Store) GetOrCreate(ctx context.Context) (*ir.Scenario, error) {
	if s.current != nil {
		return s.current, nil
	}
	if sc := s.Load(ctx); sc != nil {
		s.current = sc
		return sc, nil
	}
	fresh := ir.NewScenario(s.engine, s.Now())
	if err := s.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// document returns the working scenario without requiring persistence to
// succeed; it backs the read paths.
func (s *Store) document(ctx context.Context) *ir.Scenario {
	sc, err := s.GetOrCreate(ctx)
	if err != nil {
		s.logger.Warn("scenario not persisted", "error", err)
		s.current = ir.NewScenario(s.engine, s.Now())
		return s.current
	}
	return sc
}

// Save stamps updated_at and persists sc, which becomes the current scenario.
func (s *Store) Save(ctx context.Context, sc *ir.Scenario) error {
	sc.Touch(s.Now())
	s.current = sc
	if err := s.repo.Save(ctx, sc); err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	return nil
}

// Reset discards persisted state and returns a fresh, persisted scenario.
func (s *Store) Reset(ctx context.Context) (*ir.Scenario, error) {
	if err := s.repo.Delete(ctx); err != nil {
		return nil, fmt.Errorf("reset scenario: %w", err)
	}
	s.current = nil
	fresh := ir.NewScenario(s.engine, s.Now())
	if err := s.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Get resolves a dotted path. The second result is false when the path does
// not resolve.
func (s *Store) Get(ctx context.Context, path string) (any, bool) {
	return s.document(ctx).Lookup(path)
}

// Set writes value at a dotted path and persists. Hashes covering the path
// are dropped; callers that certify the value call StoreHash afterwards.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	sc := s.document(ctx)
	if err := sc.Assign(path, value); err != nil {
		return err
	}
	return s.Save(ctx, sc)
}

// SetInput writes inputs.<key>.
func (s *Store) SetInput(ctx context.Context, key string, value any) error {
	return s.Set(ctx, ir.NSInputs+"."+key, value)
}

// SetDerived writes derived.<key>.
func (s *Store) SetDerived(ctx context.Context, key string, value any) error {
	return s.Set(ctx, ir.NSDerived+"."+key, value)
}

// SetModuleStatus records the latest state of a module with a fresh
// timestamp and persists. A module with no entry counts as PENDING; moves
// the status machine forbids fail with ErrIllegalTransition.
func (s *Store) SetModuleStatus(ctx context.Context, key string, status ir.Status, notes string) error {
	if key == "" {
		return fmt.Errorf("set module status: empty module key")
	}
	if !status.Valid() {
		return fmt.Errorf("set module status %s: unknown status %q", key, status)
	}
	sc := s.document(ctx)
	prev := ir.StatusPending
	if entry, ok := sc.ModuleStatus[key]; ok {
		prev = entry.Status
	}
	if !prev.CanTransition(status) {
		return fmt.Errorf("set module status %s: %w: %s → %s", key, ErrIllegalTransition, prev, status)
	}
	sc.ModuleStatus[key] = ir.ModuleStatusEntry{
		Status:      status,
		Notes:       notes,
		GeneratedAt: s.Now(),
	}
	return s.Save(ctx, sc)
}

// SeedPending puts every key in PENDING and removes status entries for keys
// not listed, leaving exactly one entry per module. It persists once.
func (s *Store) SeedPending(ctx context.Context, keys []string) error {
	sc := s.document(ctx)
	now := s.Now()
	keep := make(map[string]bool, len(keys))
	for _, key := range keys {
		keep[key] = true
		sc.ModuleStatus[key] = ir.ModuleStatusEntry{Status: ir.StatusPending, GeneratedAt: now}
	}
	for key := range sc.ModuleStatus {
		if !keep[key] {
			delete(sc.ModuleStatus, key)
		}
	}
	return s.Save(ctx, sc)
}

// StoreHash digests value and records it under hashes[name]. Strings are
// hashed as-is; other values over their canonical JSON.
func (s *Store) StoreHash(ctx context.Context, name string, value any) (string, error) {
	if name == "" {
		return "", fmt.Errorf("store hash: empty name")
	}
	digest, err := s.hasher.Hash(value)
	if err != nil {
		return "", fmt.Errorf("store hash %s: %w", name, err)
	}
	sc := s.document(ctx)
	sc.Hashes[name] = digest
	if err := s.Save(ctx, sc); err != nil {
		return digest, err
	}
	return digest, nil
}

// Snapshot returns a deep copy of the current scenario for read-only use.
func (s *Store) Snapshot(ctx context.Context) *ir.Scenario {
	return s.document(ctx).Clone()
}
