// Package util contains internal helpers shared across packages.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// 64-bit FNV-1a. Used to digest canonicalized list parameters into
// fixed-width cache keys; not a cryptographic hash.
const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Sum64String returns the 64-bit FNV-1a digest of s without allocating.
func Sum64String(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// Sum64 returns the 64-bit FNV-1a digest of b.
func Sum64(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}
