package nid

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is the panic value of a Sequence that has allocated every
// nid below None.
var ErrExhausted = errors.New("nid space exhausted")

// Generator allocates new nids. Implementations must be safe for
// concurrent use and must never return the same nid twice.
type Generator interface {
	Next() Nid
}

// Sequence is a monotonic Generator backed by an atomic counter.
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	last atomic.Int32
}

// NewSequence creates a sequence whose first allocation is First.
func NewSequence() *Sequence {
	return NewSequenceAt(Unset)
}

// NewSequenceAt creates a sequence that resumes after last.
// Used on store start to continue from the highest persisted nid.
func NewSequenceAt(last Nid) *Sequence {
	if last < Unset+1 {
		last = Unset
	}
	s := &Sequence{}
	s.last.Store(int32(last))
	return s
}

// Next returns the next nid. Calls are linearizable. Next panics with
// ErrExhausted rather than wrap into None, Unset or a reused nid.
func (s *Sequence) Next() Nid {
	for {
		last := s.last.Load()
		if Nid(last) >= None-1 {
			panic(ErrExhausted)
		}
		if s.last.CompareAndSwap(last, last+1) {
			return Nid(last + 1)
		}
	}
}

// Current returns the last allocated nid, or Unset if none was allocated.
func (s *Sequence) Current() Nid {
	return Nid(s.last.Load())
}
