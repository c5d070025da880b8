package pow

// Lifetime is RANDOMX_VM_KEY_LIFETIME: the number of blocks a PoW cache key
// is kept before it is rotated.
const Lifetime = 10000

// ZeroKey is the key used for the very first epoch, before any block's
// hash has ever become a cache key.
var ZeroKey = [32]byte{}

// IsEpochBoundary reports whether height is a positive multiple of
// Lifetime — the height at which AddBlock rotates the cache key to that
// block's own hash, and at which DelTopBlock must roll it back.
func IsEpochBoundary(height uint64) bool {
	return heightIsEpochBoundary(height, Lifetime)
}

// EpochKeyForHeight returns the PoW cache key that should be active once the
// chain's top is at height: the hash of the block at the largest epoch
// boundary (a positive multiple of Lifetime) at or below height, or ZeroKey
// if height hasn't reached the first boundary yet. Used on startup recovery,
// when height may have been truncated back by more than one epoch.
func EpochKeyForHeight(height uint64, lookupHash func(height uint64) ([32]byte, bool, error)) ([32]byte, error) {
	boundary := (height / Lifetime) * Lifetime
	if boundary == 0 {
		return ZeroKey, nil
	}
	hash, ok, err := lookupHash(boundary)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return ZeroKey, nil
	}
	return hash, nil
}

// RollbackKey computes the key a cache should revert to when the block at
// height (an epoch boundary) is rolled back: the hash captured at the
// previous epoch boundary, or ZeroKey if that boundary is at or before
// genesis.
//
// lookupHash is called with the previous epoch's height to resolve the
// hash that was the chain's top block at that height; it is only invoked
// when height-Lifetime is a positive height.
func RollbackKey(height uint64, lookupHash func(height uint64) ([32]byte, error)) ([32]byte, error) {
	if height <= Lifetime {
		return ZeroKey, nil
	}
	return lookupHash(height - Lifetime)
}
