// Package remote encodes store operations for an external transport.
//
// A request frame is a one-byte operation token followed by its payload;
// integers are big-endian int32. Framing on the wire, connection handling
// and error transport belong to the transport, not to this package.
//
//	NID_FOR_UUIDS (1)  count, count × 16-byte uuid   → nid
//	GET_BYTES     (2)  nid                           → length (-1 absent), bytes
//	MERGE         (3)  nid, pattern nid, referenced  → length, bytes
//	                   component nid, length, bytes
package remote
