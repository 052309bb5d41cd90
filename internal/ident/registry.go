package ident

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
)

// Registry resolves identity-equivalence-classes to nids.
//
// Thread-safety: Registry is safe for concurrent use when its Mapping and
// Generator are.
type Registry struct {
	mapping Mapping
	gen     nid.Generator
}

// NewRegistry creates a registry that stores mappings in m and allocates
// new nids from gen.
func NewRegistry(m Mapping, gen nid.Generator) *Registry {
	return &Registry{mapping: m, gen: gen}
}

// Resolve returns the nid of the equivalence class formed by ids.
//
// A single id is resolved with one atomic get-or-create. For several ids
// the ids are sorted; if none is mapped a new nid is allocated for the
// smallest and every sibling is back-filled to it; if some are mapped and
// agree, the unmapped ones are back-filled; if two disagree Resolve fails
// with IDENTITY_CONFLICT and never picks a winner.
func (r *Registry) Resolve(ctx context.Context, ids ...uuid.UUID) (nid.Nid, error) {
	switch len(ids) {
	case 0:
		return nid.Unset, &IdentityError{
			Code:    ErrCodeEmptyIdentity,
			Message: "identity requires at least one uuid",
		}
	case 1:
		n, err := r.mapping.LoadOrStore(ctx, ids[0], r.gen.Next)
		if err != nil {
			return nid.Unset, fmt.Errorf("resolve %s: %w", ids[0], err)
		}
		return n, nil
	}

	sorted := Canonical(ids)

	found := nid.Unset
	missing := false
	for _, id := range sorted {
		n, ok, err := r.mapping.Lookup(ctx, id)
		if err != nil {
			return nid.Unset, fmt.Errorf("resolve %s: %w", id, err)
		}
		if !ok {
			missing = true
			continue
		}
		if found == nid.Unset {
			found = n
		} else if found != n {
			return nid.Unset, newConflictError(sorted, found, n)
		}
	}
	if !missing {
		return found, nil
	}

	if found == nid.Unset {
		n, err := r.mapping.LoadOrStore(ctx, sorted[0], r.gen.Next)
		if err != nil {
			return nid.Unset, fmt.Errorf("resolve %s: %w", sorted[0], err)
		}
		found = n
	}

	// A concurrent resolver may have claimed a sibling in the meantime;
	// get-or-create surfaces that as a conflict instead of overwriting it.
	agreed := func() nid.Nid { return found }
	for _, id := range sorted {
		n, err := r.mapping.LoadOrStore(ctx, id, agreed)
		if err != nil {
			return nid.Unset, fmt.Errorf("back-fill %s: %w", id, err)
		}
		if n != found {
			return nid.Unset, newConflictError(sorted, found, n)
		}
	}
	return found, nil
}

// Lookup returns the nid of id without allocating.
func (r *Registry) Lookup(ctx context.Context, id uuid.UUID) (nid.Nid, bool, error) {
	return r.mapping.Lookup(ctx, id)
}

// Canonical returns a sorted, duplicate-free copy of ids, ordered by their
// 16 bytes compared as unsigned values.
func Canonical(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
