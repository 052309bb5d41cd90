// Package ident resolves sets of universal ids (UUIDs) to nids.
//
// Several source systems may assign different UUIDs to one real-world
// component. Every UUID of such an equivalence class maps to the same
// nid; growing a class with a new UUID never forks its nid, and asserting
// equivalence between UUIDs that already map to different nids is an
// IDENTITY_CONFLICT rather than a silent merge.
//
// Back-filling the siblings of a class is not atomic as a group. A reader
// may briefly see a sibling unmapped; "unmapped" always means "needs
// resolution", never "different identity".
package ident
