// Package engine implements the typed command surface on top of the key
// space.
//
// Three layers share one implementation:
//
//   - Ops: per-type operations against an open keyspace.Txn. The caller
//     holds the key locks.
//   - Engine: the same operations as a locked typed Go API, plus Exec,
//     which dispatches a textual Command through the command table.
//   - Transaction and Batch: queues of Commands executed atomically under
//     the union of their key locks, with optional watch conditions.
//
// Every operation fails with domain.ErrWrongType without side effects when
// the key holds another type. Containers left empty are deleted.
package engine
