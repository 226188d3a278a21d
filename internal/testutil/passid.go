package testutil

import (
	"fmt"
	"sync"
)

// SequentialPassIDs generates pass ids "<prefix>-0001", "<prefix>-0002", ...
//
// The same harness scenario with the same generator produces identical pass
// histories, which keeps golden files stable.
type SequentialPassIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialPassIDs creates a generator. An empty prefix means "pass".
func NewSequentialPassIDs(prefix string) *SequentialPassIDs {
	if prefix == "" {
		prefix = "pass"
	}
	return &SequentialPassIDs{prefix: prefix}
}

// Generate returns the next pass id.
//
// Implements engine.PassIDGenerator.
func (g *SequentialPassIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
