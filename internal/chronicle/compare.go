package chronicle

// Compare orders entries for canonical serialization.
//
// Bytes are compared pairwise as signed 8-bit values up to the shorter
// length; on a shared prefix the shorter entry sorts first. The signed
// comparison keeps output identical to chronicles produced by existing
// replicas, which order entries that way.
func Compare(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := int8(a[i]), int8(b[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
