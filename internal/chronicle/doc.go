// Package chronicle implements the binary chronicle format and the merge
// that lets independent writers converge on one version history.
//
// A chronicle is the full edit history of one component:
//
//	int32 total entry count (header + versions)
//	int32 header length + 4
//	      header bytes
//	int32 version count (= total - 1)
//	then, per version:
//	int32 version length
//	      version bytes
//
// All integers are big-endian. Byte 0 of every entry is a kind token (see
// Token). Byte 1 of the header is the encoding format version. Bytes 1-4
// of every version entry hold the big-endian stamp nid of the edit that
// produced it.
//
// # Merge
//
// Merge combines two chronicles into one canonical chronicle:
//   - Versions are deduplicated by stamp nid. When both inputs carry a
//     version under the same stamp the newer input wins: a resubmission
//     under one stamp is a correction, not a concurrent edit.
//   - Versions are sorted with Compare, so merges performed in any order
//     on any node produce identical bytes.
//   - Concept, pattern and semantic versions whose stamp is canceled are
//     pruned, but only when the result would hold more than two entries.
//
// Merge is pure given the canceled set, idempotent, and commutative for
// inputs without shared-stamp conflicts. All failures are detected while
// decoding, before any output is produced.
package chronicle
