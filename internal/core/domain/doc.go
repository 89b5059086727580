// Package domain defines the value model of the keyspace.
//
// Domain types are plain data structures without IO or locking. This
// package contains:
//
//   - Value: the tagged union stored under a key (String, Hash, List, Set,
//     SortedSet) with its Kind discriminant
//   - per-type structures enforcing their own invariants (unique set
//     members, one score per sorted-set member, zero-based list indexing
//     with negative offsets from the tail)
//   - Errors: structured error kinds shared by every layer
//
// Callers are responsible for synchronization.
package domain
