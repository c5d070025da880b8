// Package pow binds the chain's proof-of-work to its header: a long-lived
// key is derived from a chain epoch and used to initialize a memory-hard
// cache, against which the header-plus-nonce bytes are evaluated.
//
// The cache is keyed per epoch so specialized hardware can't amortize
// setup cost across the chain's whole history. RandomX has no Go binding
// that doesn't drag in cgo and a vendored C library, so the memory-hard
// function here is golang.org/x/crypto/argon2, keeping the same
// keyed-cache shape: build once per epoch from a 32-byte key, then hash
// arbitrarily many header+nonce inputs against it.
package pow

import (
	"golang.org/x/crypto/argon2"
)

// OutputSize is the width, in bytes, of a PoW hash.
const OutputSize = 32

// Argon2 cost parameters for the cache. These are fixed for the life of the
// chain, same as the hash primitives in package bhash.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// Cache is the memory-hard cache keyed by a chain epoch's randomx_vm_key.
// It holds only the 32-byte key and is immutable; nothing is precomputed
// at construction, and each Hash call does the memory-hard Argon2id work
// itself. Exactly one exists at a time, owned by the chain-state engine,
// and it is replaced on epoch rotation. Handles into a stale Cache must
// not be used after rotation.
type Cache struct {
	key [32]byte
}

// NewCache constructs a cache keyed by key. Meant to be called once per
// epoch, not once per hash.
func NewCache(key [32]byte) *Cache {
	return &Cache{key: key}
}

// Key returns the 32-byte key this cache was built from.
func (c *Cache) Key() [32]byte { return c.key }

// Hash evaluates input against this cache, returning the 32-byte PoW
// output. input is the header concatenation followed by the nonce.
func (c *Cache) Hash(input []byte) [OutputSize]byte {
	salt := saltFromKey(c.key)
	out := argon2.IDKey(input, salt, argonTime, argonMemory, argonThreads, OutputSize)

	var digest [OutputSize]byte
	copy(digest[:], out)
	return digest
}

// saltFromKey derives a salt deterministically from the epoch key so the
// same key always produces the same cache behavior. Argon2id requires a
// salt of at least 8 bytes; the first 16 bytes of the key serve directly
// since the key is itself a 32-byte hash and already has full entropy.
func saltFromKey(key [32]byte) []byte {
	salt := make([]byte, 16)
	copy(salt, key[:16])
	return salt
}

// heightIsEpochBoundary reports whether height is a positive multiple of
// lifetime, the epoch-rotation condition used by both AddBlock and
// DelTopBlock.
func heightIsEpochBoundary(height, lifetime uint64) bool {
	return lifetime > 0 && height > 0 && height%lifetime == 0
}
