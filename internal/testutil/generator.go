// Package testutil provides deterministic helpers shared by tests.
package testutil

import (
	"sync"

	"github.com/roach88/nidstore/internal/nid"
)

// CountingGenerator allocates nids from a fixed starting point and
// records how many it handed out.
//
// Unlike nid.Sequence, CountingGenerator can be reset for test reuse so
// the same scenario yields identical nids on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type CountingGenerator struct {
	mu    sync.Mutex
	start nid.Nid
	next  nid.Nid
	calls int
}

// NewCountingGenerator creates a generator whose first nid is start.
func NewCountingGenerator(start nid.Nid) *CountingGenerator {
	return &CountingGenerator{start: start, next: start}
}

// Next returns the next nid.
func (g *CountingGenerator) Next() nid.Nid {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.next
	g.next++
	g.calls++
	return n
}

// Calls returns how many nids have been allocated.
func (g *CountingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Reset rewinds the generator to its starting nid.
func (g *CountingGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = g.start
	g.calls = 0
}
