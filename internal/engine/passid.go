package engine

import (
	"sync"

	"github.com/google/uuid"
)

// PassIDGenerator produces the identifier of each pass.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type PassIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 pass ids, so listing
// passes by id also lists them by start time. It is stateless and safe for
// concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics if the random source
// fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined pass ids in order.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that hands out ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. It panics once the ids run out, which
// catches tests that run more passes than they planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all pass ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
