// Package citation merges citation sets: sorted lists of integer ids that
// record where a component was imported from.
package citation

import (
	"slices"
)

// Merge returns the sorted, duplicate-free union of a and b.
//
// A nil operand yields the other operand unchanged. Equal operands yield a
// without copying. Merge is commutative, associative and idempotent, so
// replicas may combine citation sets in any order.
func Merge(a, b []int64) []int64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if slices.Equal(a, b) {
		return a
	}

	out := make([]int64, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
