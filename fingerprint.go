package ranksort

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// valueFingerprint hashes one value for the multiset fingerprint.
func valueFingerprint(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxh3.Hash(buf[:])
}

// Fingerprint returns the order-independent checksum of a multiset of values:
// the wrapping sum of the xxHash3 of each value's little-endian encoding.
//
// Equal multisets have equal fingerprints regardless of order, so the
// fingerprint taken while inserting can be checked against the one of the
// drained output. The sorted-output footer stores it.
//
//	fp := ranksort.Fingerprint(input)
//	out, _ := sorter.Sorted(ctx)
//	ok := ranksort.Fingerprint(out) == fp
func Fingerprint(values []uint64) uint64 {
	var sum uint64
	for _, v := range values {
		sum += valueFingerprint(v)
	}
	return sum
}
