// Package canceled tracks stamps that have been retracted.
//
// A canceled stamp is never deleted; versions written under it are pruned
// the next time their chronicle is merged. The set is shared by every
// writer of a store and is consulted read-only by chronicle merges.
package canceled

import (
	"slices"
	"sync"

	"github.com/roach88/nidstore/internal/nid"
)

// Stamps is a thread-safe set of canceled stamp nids.
//
// Additions are visible to every Contains call that starts after Add
// returns. A merge racing an Add may or may not observe it.
type Stamps struct {
	mu   sync.RWMutex
	nids map[nid.Nid]struct{}
}

// New creates an empty registry.
func New() *Stamps {
	return &Stamps{nids: make(map[nid.Nid]struct{})}
}

// Add marks stampNid as canceled. Adding a stamp twice is a no-op.
func (s *Stamps) Add(stampNid nid.Nid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nids[stampNid] = struct{}{}
}

// Contains reports whether stampNid has been canceled.
// A nil registry contains nothing.
func (s *Stamps) Contains(stampNid nid.Nid) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nids[stampNid]
	return ok
}

// Reset forgets every canceled stamp.
// Invoked on cache-lifecycle events, not during normal operation.
func (s *Stamps) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.nids)
}

// Len returns the number of canceled stamps.
func (s *Stamps) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nids)
}

// Nids returns the canceled stamps in ascending order.
func (s *Stamps) Nids() []nid.Nid {
	s.mu.RLock()
	out := make([]nid.Nid, 0, len(s.nids))
	for n := range s.nids {
		out = append(out, n)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}
