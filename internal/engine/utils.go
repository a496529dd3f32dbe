package engine

import "hash/fnv"

// HashStringKey hashes a string identifier to a uint64 for use as a map key,
// via FNV-1a. Used to fold a meta-variable tuple's textual key into the
// two-hash cuckoo lookup in the boilerplate library (see library.go).
func HashStringKey(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// HashStringKeySalted re-hashes with a salt byte appended, giving a second,
// independent hash of the same key without a second hash algorithm. The
// cuckoo table uses this as its h2 alongside HashStringKey as h1.
func HashStringKeySalted(s string, salt byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{salt})
	return h.Sum64()
}
