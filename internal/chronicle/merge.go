package chronicle

import (
	"bytes"
	"slices"

	"github.com/roach88/nidstore/internal/nid"
)

// CanceledSet reports whether a stamp has been retracted.
// *canceled.Stamps satisfies it.
type CanceledSet interface {
	Contains(stampNid nid.Nid) bool
}

// Merge combines the stored chronicle with an incoming chronicle and
// returns the canonical result. Versions whose stamp is in
// canceled are pruned when the merged chronicle holds more than two
// entries. canceled may be nil.
//
// A nil operand returns the other; byte-identical operands return stored
// unchanged.
func Merge(stored, incoming []byte, canceled CanceledSet) ([]byte, error) {
	if stored == nil {
		return incoming, nil
	}
	if incoming == nil {
		return stored, nil
	}
	if bytes.Equal(stored, incoming) {
		return stored, nil
	}

	newer, err := Decode(incoming)
	if err != nil {
		return nil, err
	}
	older, err := Decode(stored)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(newer.Header, older.Header) {
		return nil, corruption(-1, "chronicle headers differ (%s, %s)", newer.Kind(), older.Kind())
	}

	merged := &Chronicle{
		Header:   older.Header,
		Versions: distinctVersions(newer, older),
	}
	slices.SortStableFunc(merged.Versions, Compare)
	prune(merged, canceled)

	return merged.Encode(), nil
}

// Canonicalize rewrites a single chronicle into canonical form: versions
// deduplicated by stamp (first occurrence wins), sorted and pruned.
func Canonicalize(data []byte, canceled CanceledSet) ([]byte, error) {
	c, err := Decode(data)
	if err != nil {
		return nil, err
	}
	c.Versions = distinctVersions(c)
	slices.SortStableFunc(c.Versions, Compare)
	prune(c, canceled)
	return c.Encode(), nil
}

// distinctVersions collects versions across chronicles, keeping only the
// first version seen for each stamp. Callers pass the newest chronicle
// first.
func distinctVersions(chronicles ...*Chronicle) [][]byte {
	n := 0
	for _, c := range chronicles {
		n += len(c.Versions)
	}
	seen := make(map[nid.Nid]struct{}, n)
	out := make([][]byte, 0, n)
	for _, c := range chronicles {
		for _, v := range c.Versions {
			stamp := stampOf(v)
			if _, dup := seen[stamp]; dup {
				continue
			}
			seen[stamp] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// prune drops canceled concept, pattern and semantic versions in place,
// preserving the order of survivors. The header is never removed, and
// nothing is removed unless the chronicle holds more than two entries.
func prune(c *Chronicle, canceled CanceledSet) {
	if canceled == nil || c.Len() <= 2 {
		return
	}
	c.Versions = slices.DeleteFunc(c.Versions, func(v []byte) bool {
		return Token(v[0]).IsVersion() && canceled.Contains(stampOf(v))
	})
}
