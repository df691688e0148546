package bloom

import "github.com/cespare/xxhash/v2"

// xxhashSum derives a seeded 64-bit hash of b by hashing the seed ahead
// of the payload, the same trick the teacher's compactindexsized package
// uses to vary bucket assignment without a second hash family.
func xxhashSum(b []byte, seed byte) uint64 {
	var d xxhash.Digest
	d.Reset()
	d.Write([]byte{seed})
	d.Write(b)
	return d.Sum64()
}
