package remote

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
)

const intSize = 4

// absentLength marks a bytes response with nothing stored.
const absentLength = -1

// ErrMalformedPayload is returned when a frame or response cannot be
// decoded.
var ErrMalformedPayload = errors.New("malformed remote payload")

// Request is a decoded request frame.
type Request interface {
	Operation() Operation
	appendPayload(buf []byte) []byte
}

// NidForUUIDsRequest asks for the nid of an identity-equivalence-class.
type NidForUUIDsRequest struct {
	IDs []uuid.UUID
}

// GetBytesRequest asks for the chronicle of a nid.
type GetBytesRequest struct {
	Nid nid.Nid
}

// MergeRequest asks for a merge-write.
type MergeRequest struct {
	Nid                    nid.Nid
	PatternNid             nid.Nid
	ReferencedComponentNid nid.Nid
	Data                   []byte
}

func (NidForUUIDsRequest) Operation() Operation { return NidForUUIDs }
func (GetBytesRequest) Operation() Operation    { return GetBytes }
func (MergeRequest) Operation() Operation       { return Merge }

func (r NidForUUIDsRequest) appendPayload(buf []byte) []byte {
	buf = appendInt32(buf, int32(len(r.IDs)))
	for _, id := range r.IDs {
		buf = append(buf, id[:]...)
	}
	return buf
}

func (r GetBytesRequest) appendPayload(buf []byte) []byte {
	return appendInt32(buf, int32(r.Nid))
}

func (r MergeRequest) appendPayload(buf []byte) []byte {
	buf = appendInt32(buf, int32(r.Nid))
	buf = appendInt32(buf, int32(r.PatternNid))
	buf = appendInt32(buf, int32(r.ReferencedComponentNid))
	buf = appendInt32(buf, int32(len(r.Data)))
	return append(buf, r.Data...)
}

// EncodeRequest serializes req as a request frame.
func EncodeRequest(req Request) []byte {
	return req.appendPayload([]byte{byte(req.Operation())})
}

// DecodeRequest parses a request frame.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedPayload)
	}
	op, err := ParseOperation(frame[0])
	if err != nil {
		return nil, err
	}

	r := reader{buf: frame, off: 1}
	var req Request
	switch op {
	case NidForUUIDs:
		req, err = r.nidForUUIDs()
	case GetBytes:
		var n nid.Nid
		n, err = r.nid("nid")
		req = GetBytesRequest{Nid: n}
	case Merge:
		req, err = r.merge()
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("decode %s: %w: %d trailing bytes", op, ErrMalformedPayload, r.remaining())
	}
	return req, nil
}

// EncodeNid serializes a nid response.
func EncodeNid(n nid.Nid) []byte {
	return appendInt32(nil, int32(n))
}

// DecodeNid parses a nid response.
func DecodeNid(data []byte) (nid.Nid, error) {
	r := reader{buf: data}
	n, err := r.nid("nid")
	if err != nil {
		return nid.Unset, err
	}
	if r.remaining() != 0 {
		return nid.Unset, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, r.remaining())
	}
	return n, nil
}

// EncodeBytes serializes a bytes response. nil encodes as absent.
func EncodeBytes(data []byte) []byte {
	if data == nil {
		return appendInt32(nil, absentLength)
	}
	out := appendInt32(make([]byte, 0, intSize+len(data)), int32(len(data)))
	return append(out, data...)
}

// DecodeBytes parses a bytes response. Absent decodes as nil.
func DecodeBytes(data []byte) ([]byte, error) {
	r := reader{buf: data}
	size, err := r.int32("length")
	if err != nil {
		return nil, err
	}
	if size == absentLength {
		if r.remaining() != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, r.remaining())
		}
		return nil, nil
	}
	out, err := r.bytes(size, "bytes")
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload, r.remaining())
	}
	return out, nil
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
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
		return 0, fmt.Errorf("%w: truncated %s at offset %d", ErrMalformedPayload, what, r.off)
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += intSize
	return v, nil
}

func (r *reader) nid(what string) (nid.Nid, error) {
	v, err := r.int32(what)
	return nid.Nid(v), err
}

func (r *reader) bytes(n int32, what string) ([]byte, error) {
	if n < 0 || int(n) > r.remaining() {
		return nil, fmt.Errorf("%w: %s length %d at offset %d exceeds %d remaining bytes",
			ErrMalformedPayload, what, n, r.off, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out, nil
}

func (r *reader) nidForUUIDs() (NidForUUIDsRequest, error) {
	count, err := r.int32("uuid count")
	if err != nil {
		return NidForUUIDsRequest{}, err
	}
	if count < 0 || int(count) > r.remaining()/16 {
		return NidForUUIDsRequest{}, fmt.Errorf("%w: uuid count %d exceeds %d remaining bytes",
			ErrMalformedPayload, count, r.remaining())
	}
	ids := make([]uuid.UUID, count)
	for i := range ids {
		copy(ids[i][:], r.buf[r.off:r.off+16])
		r.off += 16
	}
	return NidForUUIDsRequest{IDs: ids}, nil
}

func (r *reader) merge() (MergeRequest, error) {
	var req MergeRequest
	var err error
	if req.Nid, err = r.nid("nid"); err != nil {
		return req, err
	}
	if req.PatternNid, err = r.nid("pattern nid"); err != nil {
		return req, err
	}
	if req.ReferencedComponentNid, err = r.nid("referenced component nid"); err != nil {
		return req, err
	}
	size, err := r.int32("data length")
	if err != nil {
		return req, err
	}
	req.Data, err = r.bytes(size, "data")
	return req, err
}
