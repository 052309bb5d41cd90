package nid

import (
	"math"
	"strconv"
)

// Nid is a native identifier.
type Nid int32

const (
	// Unset marks the absence of a nid. It is never allocated.
	Unset Nid = math.MinInt32

	// First is the first nid a fresh store allocates.
	First Nid = math.MinInt32 + 1

	// None is the referenced-component nid recorded for writes that are
	// not semantics.
	None Nid = math.MaxInt32
)

// Valid reports whether n can name a component.
func (n Nid) Valid() bool {
	return n != Unset && n != None
}

func (n Nid) String() string {
	return strconv.FormatInt(int64(n), 10)
}

// Parse reads a decimal nid.
func Parse(s string) (Nid, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return Unset, err
	}
	return Nid(v), nil
}
