// Package bhash provides the hash primitives the chain depends on.
// They are fixed for the life of the chain and are never renegotiated
// between blocks: a 28-byte digest for Merkle layers, a 64-byte digest
// for entry-difficulty measurement, and two leading-zero-bit counters,
// one for entry difficulty and one for miner difficulty.
package bhash

import (
	"golang.org/x/crypto/blake2b"
)

// MerkleSize is the output width, in bytes, of MerkleHash (224 bits).
const MerkleSize = 28

// EntrySize is the output width, in bytes, of EntryHash (512 bits).
const EntrySize = 64

// MerkleHash hashes data down to a 28-byte (224-bit) digest using Blake2b's
// variable-output mode. It is the leaf and interior-node hash of the Merkle
// tree in package merkle.
func MerkleHash(data []byte) [MerkleSize]byte {
	h, err := blake2b.New(MerkleSize, nil)
	if err != nil {
		// MerkleSize is a compile-time constant within blake2b's supported
		// range (1..64), so New can't fail here.
		panic(err)
	}
	h.Write(data)

	var out [MerkleSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EntryHash hashes data to a full 64-byte Blake2b-512 digest, used solely to
// measure per-entry proof-of-work difficulty.
func EntryHash(data []byte) [EntrySize]byte {
	return blake2b.Sum512(data)
}

// EntryLeadingZeroBits counts leading zero bits for entry difficulty: it
// scans bytes in order, adding each byte's own leading-zero count to the
// running total, and stops (without adding) the moment it reaches a byte
// whose high bit is set. A byte that is merely partial (some but not all
// leading zero bits) does NOT stop the scan; its contribution is added and
// the scan continues into the next byte. Entry difficulties on the chain
// were computed this way from genesis, so the rule can't change; see
// BlockLeadingZeroBits for the different rule block hashes use.
func EntryLeadingZeroBits(digest []byte) uint {
	var zeros uint
	for _, b := range digest {
		lz := leadingZerosByte(b)
		if lz == 0 {
			break
		}
		zeros += lz
	}
	return zeros
}

// BlockLeadingZeroBits counts leading zero bits for miner (block) difficulty:
// each byte's leading-zero count is added to the running total before the
// stop condition is checked, and the scan stops as soon as it adds a byte
// that isn't all-zero (the first byte that actually bounds the digest's
// leading-zero run). This is the conventional "leading zeros of the whole
// buffer" count; it and EntryLeadingZeroBits differ both in the stop
// condition (any non-zero byte here, a byte with its high bit set there)
// and in where it sits relative to the add.
func BlockLeadingZeroBits(digest []byte) uint {
	var zeros uint
	for _, b := range digest {
		lz := leadingZerosByte(b)
		zeros += lz
		if lz < 8 {
			break
		}
	}
	return zeros
}

func leadingZerosByte(b byte) uint {
	if b == 0 {
		return 8
	}
	var n uint
	for b&0x80 == 0 {
		n++
		b <<= 1
	}
	return n
}
