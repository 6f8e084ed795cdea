package testutil

import (
	"fmt"
	"sync"
)

// DeterministicPassGenerator produces pass ids "<prefix>-0001",
// "<prefix>-0002", ... so traces sort and compare byte-for-byte.
//
// Unlike reactor.SequentialGenerator it can be reset for test reuse, which
// lets the same scenario run twice with identical pass ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicPassGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewDeterministicPassGenerator creates a generator. An empty prefix
// defaults to "test-pass".
func NewDeterministicPassGenerator(prefix string) *DeterministicPassGenerator {
	if prefix == "" {
		prefix = "test-pass"
	}
	return &DeterministicPassGenerator{prefix: prefix}
}

// Generate returns the next pass id.
//
// Implements reactor.PassIDGenerator.
func (g *DeterministicPassGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Count returns how many ids have been generated.
func (g *DeterministicPassGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering. The next Generate returns "<prefix>-0001".
func (g *DeterministicPassGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
