package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/nidstore/internal/chronicle"
	"github.com/roach88/nidstore/internal/nid"
	"github.com/roach88/nidstore/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the store and returns
// one message per failure.
func EvaluateAssertions(ctx context.Context, st *store.Store, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(ctx, st, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, st *store.Store, a Assertion) error {
	switch a.Type {
	case AssertStamps:
		return assertStamps(ctx, st, a)
	case AssertEntries:
		return assertEntries(ctx, st, a)
	case AssertAbsent:
		return assertAbsent(ctx, st, a)
	case AssertCanonical:
		return assertCanonical(ctx, st, a)
	case AssertWriteSequence:
		return assertWriteSequence(ctx, st, a)
	case AssertCategory:
		return assertCategory(ctx, st, a)
	case AssertSemantics:
		return assertSemantics(ctx, st, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// decodeStored fetches and decodes the chronicle for the assertion's nid.
func decodeStored(ctx context.Context, st *store.Store, a Assertion) (*chronicle.Chronicle, []byte, error) {
	data, err := st.Get(ctx, nid.Nid(*a.Nid))
	if err != nil {
		return nil, nil, fmt.Errorf("get nid %d: %w", *a.Nid, err)
	}
	if data == nil {
		return nil, nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("chronicle stored for nid %d", *a.Nid),
			Actual:   "nothing stored",
		}
	}
	c, err := chronicle.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode nid %d: %w", *a.Nid, err)
	}
	return c, data, nil
}

// assertStamps checks the stamp of every version, in stored order.
func assertStamps(ctx context.Context, st *store.Store, a Assertion) error {
	c, _, err := decodeStored(ctx, st, a)
	if err != nil {
		return err
	}
	want := make([]nid.Nid, len(a.Stamps))
	for i, s := range a.Stamps {
		want[i] = nid.Nid(s)
	}
	if got := c.Stamps(); !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertStamps,
			Expected: fmt.Sprintf("nid %d stamps %v", *a.Nid, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertEntries(ctx context.Context, st *store.Store, a Assertion) error {
	c, _, err := decodeStored(ctx, st, a)
	if err != nil {
		return err
	}
	if c.Len() != *a.Count {
		return &AssertionError{
			Type:     AssertEntries,
			Expected: fmt.Sprintf("nid %d holds %d entries", *a.Nid, *a.Count),
			Actual:   fmt.Sprintf("%d entries", c.Len()),
		}
	}
	return nil
}

func assertAbsent(ctx context.Context, st *store.Store, a Assertion) error {
	data, err := st.Get(ctx, nid.Nid(*a.Nid))
	if err != nil {
		return fmt.Errorf("get nid %d: %w", *a.Nid, err)
	}
	if data != nil {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("nothing stored for nid %d", *a.Nid),
			Actual:   fmt.Sprintf("%d bytes", len(data)),
		}
	}
	return nil
}

// assertCanonical checks that canonicalizing the stored bytes, without
// pruning, is the identity.
func assertCanonical(ctx context.Context, st *store.Store, a Assertion) error {
	_, data, err := decodeStored(ctx, st, a)
	if err != nil {
		return err
	}
	canonical, err := chronicle.Canonicalize(data, nil)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical, data) {
		return &AssertionError{
			Type:     AssertCanonical,
			Expected: fmt.Sprintf("nid %d in canonical order", *a.Nid),
			Actual:   fmt.Sprintf("stored %x, canonical %x", data, canonical),
		}
	}
	return nil
}

func assertWriteSequence(ctx context.Context, st *store.Store, a Assertion) error {
	seq, err := st.WriteSequence(ctx)
	if err != nil {
		return err
	}
	if seq != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertWriteSequence,
			Expected: fmt.Sprintf("write sequence %d", *a.Count),
			Actual:   fmt.Sprintf("%d", seq),
		}
	}
	return nil
}

func assertCategory(ctx context.Context, st *store.Store, a Assertion) error {
	category, err := store.ParseCategory(a.Category)
	if err != nil {
		return err
	}
	var got []nid.Nid
	err = st.ForEachNid(ctx, category, func(n nid.Nid) error {
		got = append(got, n)
		return nil
	})
	if err != nil {
		return err
	}
	return compareNids(AssertCategory, a.Category+" nids", got, a.Nids)
}

// assertSemantics checks the semantic index selected by Pattern and/or
// Component.
func assertSemantics(ctx context.Context, st *store.Store, a Assertion) error {
	var (
		got   []nid.Nid
		err   error
		label string
	)
	switch {
	case a.Pattern != nil && a.Component != nil:
		label = fmt.Sprintf("semantics for component %d of pattern %d", *a.Component, *a.Pattern)
		got, err = st.SemanticNidsForComponentOfPattern(ctx, nid.Nid(*a.Component), nid.Nid(*a.Pattern))
	case a.Pattern != nil:
		label = fmt.Sprintf("semantics of pattern %d", *a.Pattern)
		got, err = st.SemanticNidsOfPattern(ctx, nid.Nid(*a.Pattern))
	default:
		label = fmt.Sprintf("semantics for component %d", *a.Component)
		got, err = st.SemanticNidsForComponent(ctx, nid.Nid(*a.Component))
	}
	if err != nil {
		return err
	}
	return compareNids(AssertSemantics, label, got, a.Nids)
}

// compareNids compares nid sets, ignoring order.
func compareNids(typ, label string, got []nid.Nid, want []int32) error {
	expected := make([]nid.Nid, len(want))
	for i, n := range want {
		expected[i] = nid.Nid(n)
	}
	slices.Sort(expected)
	got = slices.Clone(got)
	slices.Sort(got)

	if !slices.Equal(got, expected) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%s %v", label, expected),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}
