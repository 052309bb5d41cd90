// Package nid defines native identifiers: the stable 32-bit integers that
// name every concept, pattern, semantic and stamp within one store.
//
// Nids are allocated once per identity-equivalence-class and never reused.
// Allocation starts at First and counts upward; Unset and None are reserved
// sentinels that are never handed out by a Generator.
package nid
