package chronicle

import (
	"encoding/binary"

	"github.com/roach88/nidstore/internal/nid"
)

const (
	intSize = 4

	// minHeaderLen covers the kind token and the format version.
	minHeaderLen = 2

	// minVersionLen covers the kind token and the stamp nid.
	minVersionLen = 1 + intSize
)

// Chronicle is a decoded chronicle: one header entry followed by its
// versions. Entries are raw bytes; only the kind token, the header's
// format version and each version's stamp nid are interpreted.
type Chronicle struct {
	Header   []byte
	Versions [][]byte
}

// Kind returns the header token.
func (c *Chronicle) Kind() Token {
	return Token(c.Header[0])
}

// Len returns the total entry count, header included.
func (c *Chronicle) Len() int {
	return 1 + len(c.Versions)
}

// Stamps returns the stamp nid of every version, in entry order.
func (c *Chronicle) Stamps() []nid.Nid {
	out := make([]nid.Nid, len(c.Versions))
	for i, v := range c.Versions {
		out[i] = stampOf(v)
	}
	return out
}

// StampNid returns the stamp nid embedded in a version entry.
func StampNid(version []byte) (nid.Nid, error) {
	if len(version) < minVersionLen {
		return nid.Unset, corruption(-1, "version entry of %d bytes has no stamp", len(version))
	}
	return stampOf(version), nil
}

func stampOf(version []byte) nid.Nid {
	return nid.Nid(int32(binary.BigEndian.Uint32(version[1:minVersionLen])))
}

// Decode parses chronicle bytes. The returned entries alias data.
func Decode(data []byte) (*Chronicle, error) {
	r := reader{buf: data}

	total, err := r.int32("entry count")
	if err != nil {
		return nil, err
	}
	if total < 1 {
		return nil, corruption(0, "entry count %d, a chronicle needs a header", total)
	}

	headerBlock, err := r.int32("header length")
	if err != nil {
		return nil, err
	}
	if headerBlock < minHeaderLen+intSize {
		return nil, corruption(r.off-intSize, "header block of %d bytes is too short", headerBlock)
	}
	header, err := r.bytes(int(headerBlock)-intSize, "header")
	if err != nil {
		return nil, err
	}
	if tok := Token(header[0]); !tok.IsHeader() {
		return nil, unsupported(r.off-len(header), "unknown header token %d", header[0])
	}
	if header[1] != FormatVersion {
		return nil, unsupported(r.off-len(header)+1, "unknown format version %d", header[1])
	}

	versionCount, err := r.int32("version count")
	if err != nil {
		return nil, err
	}
	if versionCount != total-1 {
		return nil, corruption(r.off-intSize, "malformed data: version count %d, entry count %d", versionCount, total)
	}

	c := &Chronicle{Header: header}
	if versionCount > 0 {
		// Every version needs at least a length and a stamp.
		if int(versionCount) > r.remaining()/(intSize+minVersionLen) {
			return nil, corruption(r.off, "version count %d exceeds remaining %d bytes", versionCount, r.remaining())
		}
		c.Versions = make([][]byte, 0, versionCount)
	}
	for i := int32(0); i < versionCount; i++ {
		size, err := r.int32("version length")
		if err != nil {
			return nil, err
		}
		if size < minVersionLen {
			return nil, corruption(r.off-intSize, "version %d is %d bytes, too short for a stamp", i, size)
		}
		v, err := r.bytes(int(size), "version")
		if err != nil {
			return nil, err
		}
		c.Versions = append(c.Versions, v)
	}

	if r.remaining() != 0 {
		return nil, corruption(r.off, "%d trailing bytes", r.remaining())
	}
	return c, nil
}

// Encode serializes c. Versions are written in their current order; use
// Merge or Canonicalize to obtain canonical ordering.
func (c *Chronicle) Encode() []byte {
	size := intSize + intSize + len(c.Header) + intSize
	for _, v := range c.Versions {
		size += intSize + len(v)
	}

	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint32(out, uint32(c.Len()))
	out = binary.BigEndian.AppendUint32(out, uint32(len(c.Header)+intSize))
	out = append(out, c.Header...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(c.Versions)))
	for _, v := range c.Versions {
		out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
		out = append(out, v...)
	}
	return out
}

// KindOf decodes data and returns its header token.
func KindOf(data []byte) (Token, error) {
	c, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return c.Kind(), nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) int32(what string) (int32, error) {
	if r.remaining() < intSize {
		return 0, corruption(r.off, "truncated %s", what)
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += intSize
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, corruption(r.off, "%s of %d bytes exceeds remaining %d", what, n, r.remaining())
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}
