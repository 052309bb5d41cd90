package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/nidstore/internal/ident"
	"github.com/roach88/nidstore/internal/nid"
)

const lockStripes = 64

type semanticKey struct {
	pattern   nid.Nid
	component nid.Nid
}

// MemoryBackend keeps chronicles and indices in process memory.
//
// Updates for one nid are serialized by a striped lock; the maps are
// guarded by a separate RWMutex that is never held while a MergeFunc or
// visitor runs. Close is a no-op so a Store can stop and restart over the
// same MemoryBackend without losing data.
//
// Thread-safety: MemoryBackend is safe for concurrent use.
type MemoryBackend struct {
	*ident.MemoryMapping

	stripes [lockStripes]sync.Mutex

	mu         sync.RWMutex
	chronicles map[nid.Nid][]byte
	categories map[Category]map[nid.Nid]struct{}
	semantics  map[nid.Nid]semanticKey
	maxNid     nid.Nid
	writeSeq   atomic.Int64
	openCount  atomic.Int64
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{
		MemoryMapping: ident.NewMemoryMapping(),
		chronicles:    make(map[nid.Nid][]byte),
		categories:    make(map[Category]map[nid.Nid]struct{}),
		semantics:     make(map[nid.Nid]semanticKey),
		maxNid:        nid.Unset,
	}
	for _, c := range Categories {
		b.categories[c] = make(map[nid.Nid]struct{})
	}
	return b
}

// Opener returns an Opener that hands out b on every call.
func (b *MemoryBackend) Opener() Opener {
	return func(context.Context) (Backend, error) {
		b.openCount.Add(1)
		return b, nil
	}
}

// Opens returns how many times the Opener has been called.
func (b *MemoryBackend) Opens() int64 {
	return b.openCount.Load()
}

func (b *MemoryBackend) stripe(n nid.Nid) *sync.Mutex {
	return &b.stripes[uint32(n)%lockStripes]
}

// Get implements Backend. The returned slice is a copy.
func (b *MemoryBackend) Get(ctx context.Context, n nid.Nid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.chronicles[n]), nil
}

// Update implements Backend.
func (b *MemoryBackend) Update(ctx context.Context, w Write, merge MergeFunc) ([]byte, error) {
	lock := b.stripe(w.Nid)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	stored := b.chronicles[w.Nid]
	b.mu.RUnlock()

	merged, err := merge(slices.Clone(stored))
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, fmt.Errorf("update %s: merge produced no bytes", w.Nid)
	}
	merged = slices.Clone(merged)

	b.mu.Lock()
	b.chronicles[w.Nid] = merged
	b.index(w)
	b.mu.Unlock()

	b.writeSeq.Add(1)
	return slices.Clone(merged), nil
}

// index records w in the category indices. Caller holds b.mu.
func (b *MemoryBackend) index(w Write) {
	if set, ok := b.categories[w.Category]; ok {
		set[w.Nid] = struct{}{}
	}
	if w.Category == CategorySemantic {
		b.semantics[w.Nid] = semanticKey{pattern: w.PatternNid, component: w.ReferencedComponentNid}
	}
	if w.Nid > b.maxNid {
		b.maxNid = w.Nid
	}
}

// ForEach implements Backend. Chronicles are visited in nid order; ones
// written after the traversal started may or may not be visited.
func (b *MemoryBackend) ForEach(ctx context.Context, fn Visitor) error {
	b.mu.RLock()
	keys := make([]nid.Nid, 0, len(b.chronicles))
	for n := range b.chronicles {
		keys = append(keys, n)
	}
	b.mu.RUnlock()
	slices.Sort(keys)

	for _, n := range keys {
		data, err := b.Get(ctx, n)
		if err != nil {
			return err
		}
		if err := fn(data, n); err != nil {
			return err
		}
	}
	return nil
}

// ForEachNid implements Backend.
func (b *MemoryBackend) ForEachNid(ctx context.Context, c Category, fn NidVisitor) error {
	return b.visit(ctx, func() []nid.Nid {
		set := b.categories[c]
		out := make([]nid.Nid, 0, len(set))
		for n := range set {
			out = append(out, n)
		}
		return out
	}, fn)
}

// ForEachSemanticOfPattern implements Backend.
func (b *MemoryBackend) ForEachSemanticOfPattern(ctx context.Context, pattern nid.Nid, fn NidVisitor) error {
	return b.visitSemantics(ctx, func(k semanticKey) bool { return k.pattern == pattern }, fn)
}

// ForEachSemanticForComponent implements Backend.
func (b *MemoryBackend) ForEachSemanticForComponent(ctx context.Context, component nid.Nid, fn NidVisitor) error {
	return b.visitSemantics(ctx, func(k semanticKey) bool { return k.component == component }, fn)
}

// ForEachSemanticForComponentOfPattern implements Backend.
func (b *MemoryBackend) ForEachSemanticForComponentOfPattern(ctx context.Context, component, pattern nid.Nid, fn NidVisitor) error {
	return b.visitSemantics(ctx, func(k semanticKey) bool {
		return k.component == component && k.pattern == pattern
	}, fn)
}

func (b *MemoryBackend) visitSemantics(ctx context.Context, match func(semanticKey) bool, fn NidVisitor) error {
	return b.visit(ctx, func() []nid.Nid {
		var out []nid.Nid
		for n, k := range b.semantics {
			if match(k) {
				out = append(out, n)
			}
		}
		return out
	}, fn)
}

// visit snapshots nids under the read lock, then calls fn for each in
// ascending order without holding any lock.
func (b *MemoryBackend) visit(ctx context.Context, snapshot func() []nid.Nid, fn NidVisitor) error {
	b.mu.RLock()
	nids := snapshot()
	b.mu.RUnlock()
	slices.Sort(nids)

	for _, n := range nids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// WriteSequence implements Backend.
func (b *MemoryBackend) WriteSequence(context.Context) (int64, error) {
	return b.writeSeq.Load(), nil
}

// MaxNid implements Backend.
func (b *MemoryBackend) MaxNid(context.Context) (nid.Nid, error) {
	b.mu.RLock()
	highest := b.maxNid
	b.mu.RUnlock()
	if mapped := b.MemoryMapping.MaxNid(); mapped > highest {
		highest = mapped
	}
	return highest, nil
}

// Close implements Backend. The data is retained.
func (b *MemoryBackend) Close() error {
	return nil
}
