package ident

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
)

// Mapping stores the uuid → nid relation. Backing engines implement it so
// the relation persists with the chronicles it names.
type Mapping interface {
	// Lookup returns the nid mapped to id, if any.
	Lookup(ctx context.Context, id uuid.UUID) (nid.Nid, bool, error)

	// LoadOrStore returns the nid mapped to id. If id is unmapped it calls
	// generate exactly once, stores the result and returns it. Concurrent
	// callers for one id converge on a single stored nid.
	LoadOrStore(ctx context.Context, id uuid.UUID, generate func() nid.Nid) (nid.Nid, error)
}

// MemoryMapping is an in-process Mapping.
//
// Thread-safety: MemoryMapping is safe for concurrent use.
type MemoryMapping struct {
	mu   sync.RWMutex
	nids map[uuid.UUID]nid.Nid
	max  nid.Nid
}

// NewMemoryMapping creates an empty mapping.
func NewMemoryMapping() *MemoryMapping {
	return &MemoryMapping{
		nids: make(map[uuid.UUID]nid.Nid),
		max:  nid.Unset,
	}
}

// Lookup implements Mapping.
func (m *MemoryMapping) Lookup(_ context.Context, id uuid.UUID) (nid.Nid, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nids[id]
	return n, ok, nil
}

// LoadOrStore implements Mapping.
func (m *MemoryMapping) LoadOrStore(_ context.Context, id uuid.UUID, generate func() nid.Nid) (nid.Nid, error) {
	m.mu.RLock()
	n, ok := m.nids[id]
	m.mu.RUnlock()
	if ok {
		return n, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nids[id]; ok {
		return n, nil
	}
	n = generate()
	m.nids[id] = n
	if n > m.max {
		m.max = n
	}
	return n, nil
}

// MaxNid returns the highest nid stored, or nid.Unset when empty.
func (m *MemoryMapping) MaxNid() nid.Nid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.max
}

// Len returns the number of mapped ids.
func (m *MemoryMapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nids)
}
