package scenario

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/abeflag/internal/ir"
)

var (
	// ErrNotFound is returned by a Repository when nothing is persisted.
	ErrNotFound = errors.New("scenario not found")

	// ErrSave wraps every repository failure surfaced by Store writes.
	ErrSave = errors.New("save scenario")
)

// Repository persists one scenario document.
type Repository interface {
	// Load returns the persisted scenario, ErrNotFound when there is none,
	// or a decode error when the stored bytes are not a scenario.
	Load(ctx context.Context) (*ir.Scenario, error)
	Save(ctx context.Context, s *ir.Scenario) error
	// Delete removes the persisted scenario. Deleting nothing is not an error.
	Delete(ctx context.Context) error
}

// MemoryRepository keeps the encoded document in memory. Each Load decodes a
// fresh copy so callers never share maps with the repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load(_ context.Context) (*ir.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return nil, ErrNotFound
	}
	return ir.DecodeScenario(r.data)
}

func (r *MemoryRepository) Save(_ context.Context, s *ir.Scenario) error {
	data, err := ir.EncodeScenario(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	r.data = nil
	r.mu.Unlock()
	return nil
}

// Raw returns the stored bytes, or nil.
func (r *MemoryRepository) Raw() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]byte(nil), r.data...)
}

// SetRaw replaces the stored bytes without validation.
func (r *MemoryRepository) SetRaw(data []byte) {
	r.mu.Lock()
	r.data = append([]byte(nil), data...)
	r.mu.Unlock()
}
