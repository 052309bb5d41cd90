package store

import (
	"context"
	"fmt"

	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/ident"
	"github.com/roach88/nidstore/internal/nid"
)

// Category selects one of the per-kind nid indices.
type Category int

const (
	CategoryConcept Category = iota + 1
	CategoryPattern
	CategorySemantic
	CategoryStamp
)

// Categories lists every category in index order.
var Categories = []Category{CategoryConcept, CategoryPattern, CategorySemantic, CategoryStamp}

func (c Category) String() string {
	switch c {
	case CategoryConcept:
		return "concept"
	case CategoryPattern:
		return "pattern"
	case CategorySemantic:
		return "semantic"
	case CategoryStamp:
		return "stamp"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// CategoryOf maps a chronicle header token to its category.
func CategoryOf(t chronicle.Token) (Category, bool) {
	switch t {
	case chronicle.ConceptChronology:
		return CategoryConcept, true
	case chronicle.PatternChronology:
		return CategoryPattern, true
	case chronicle.SemanticChronology:
		return CategorySemantic, true
	case chronicle.StampChronology:
		return CategoryStamp, true
	}
	return 0, false
}

// Write describes the chronicle a merge-write targets.
// PatternNid and ReferencedComponentNid are meaningful for semantics only;
// other categories carry nid.None.
type Write struct {
	Nid                    nid.Nid
	Category               Category
	PatternNid             nid.Nid
	ReferencedComponentNid nid.Nid
}

// MergeFunc computes the bytes to store from the bytes currently stored,
// which are nil when the nid has no chronicle yet.
type MergeFunc func(stored []byte) ([]byte, error)

// Visitor is called once per stored chronicle during a full traversal.
type Visitor func(data []byte, n nid.Nid) error

// NidVisitor is called once per nid during an index traversal.
type NidVisitor func(n nid.Nid) error

// Backend is the storage engine behind a Store.
//
// Thread-safety: implementations must be safe for concurrent use. Update
// must run its read-merge-write atomically per nid. Visitors may call back
// into the Backend.
type Backend interface {
	ident.Mapping

	// Get returns the chronicle stored for n, or nil if there is none.
	Get(ctx context.Context, n nid.Nid) ([]byte, error)

	// Update reads the chronicle of w.Nid, passes it to merge and stores
	// the result, indexing it under w. A merge error leaves the stored
	// bytes untouched. Every successful Update advances the write
	// sequence.
	Update(ctx context.Context, w Write, merge MergeFunc) ([]byte, error)

	// ForEach visits every stored chronicle. A visitor error stops the
	// traversal and is returned.
	ForEach(ctx context.Context, fn Visitor) error

	// ForEachNid visits every nid indexed under c.
	ForEachNid(ctx context.Context, c Category, fn NidVisitor) error

	// ForEachSemanticOfPattern visits semantics whose pattern is pattern.
	ForEachSemanticOfPattern(ctx context.Context, pattern nid.Nid, fn NidVisitor) error

	// ForEachSemanticForComponent visits semantics that reference component.
	ForEachSemanticForComponent(ctx context.Context, component nid.Nid, fn NidVisitor) error

	// ForEachSemanticForComponentOfPattern visits semantics that reference
	// component and whose pattern is pattern.
	ForEachSemanticForComponentOfPattern(ctx context.Context, component, pattern nid.Nid, fn NidVisitor) error

	// WriteSequence returns the persisted write sequence.
	WriteSequence(ctx context.Context) (int64, error)

	// MaxNid returns the highest nid the backend has seen, either as a
	// chronicle key or as a mapped uuid, or nid.Unset when empty.
	MaxNid(ctx context.Context) (nid.Nid, error)

	Close() error
}

// Opener opens a Backend. Store.Start calls it on every start.
type Opener func(ctx context.Context) (Backend, error)
