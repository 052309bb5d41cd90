package testutil

import (
	"encoding/binary"

	"github.com/roach88/nidstore/internal/nid"
)

// Token values mirrored from package chronicle so that package's own
// tests can use these builders without an import cycle.
const (
	ConceptChronology  byte = 1
	PatternChronology  byte = 2
	SemanticChronology byte = 3
	ConceptVersion     byte = 4
	PatternVersion     byte = 5
	SemanticVersion    byte = 6
	StampChronology    byte = 7
	StampVersion       byte = 8

	formatVersion byte = 1
)

// Header builds a header entry: kind token, format version, payload.
func Header(kind byte, payload ...byte) []byte {
	out := make([]byte, 0, 2+len(payload))
	out = append(out, kind, formatVersion)
	return append(out, payload...)
}

// Version builds a version entry: kind token, big-endian stamp, payload.
func Version(kind byte, stamp nid.Nid, payload ...byte) []byte {
	out := make([]byte, 0, 5+len(payload))
	out = append(out, kind)
	out = binary.BigEndian.AppendUint32(out, uint32(stamp))
	return append(out, payload...)
}

// Chronicle serializes a header and versions in the given order, without
// sorting or deduplication.
func Chronicle(header []byte, versions ...[]byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(1+len(versions)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(header)+4))
	out = append(out, header...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(versions)))
	for _, v := range versions {
		out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
		out = append(out, v...)
	}
	return out
}

// Concept builds a concept chronicle with one concept version per stamp.
func Concept(id byte, stamps ...nid.Nid) []byte {
	versions := make([][]byte, len(stamps))
	for i, s := range stamps {
		versions[i] = Version(ConceptVersion, s)
	}
	return Chronicle(Header(ConceptChronology, id), versions...)
}
