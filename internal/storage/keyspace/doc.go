// Package keyspace holds the mapping from keys to typed values.
//
// The key space is a striped map: every key hashes to one stripe and its
// lock. Single-key access goes through Get, Set, Delete and Exists.
// Multi-key work runs inside View or Update, which lock the stripes of all
// named keys in ascending order and hand the callback an unlocked Txn:
//
//	err := ks.Update([]string{"src", "dst"}, func(txn *keyspace.Txn) error {
//		v, ok := txn.Get("src")
//		...
//	})
//
// Entries carry an absolute expiration time and a write version. Expired
// entries are invisible to readers, removed lazily by writers and swept in
// the background by PurgeExpired.
package keyspace
