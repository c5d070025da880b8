package state

import (
	"sync"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/pow"
)

// Engine manages the chain-state database. AddBlock and DelTopBlock are
// the only mutating operations and are serialized by mu; reads do not
// take mu and go straight to the store, relying on its read transactions,
// so they never wait for an engine-level writer.
type Engine struct {
	mu sync.Mutex

	store     *database.Store
	cache     *pow.Cache
	evHandler EventHandler
}

// ChainInfo returns the current chain-info record.
func (e *Engine) ChainInfo() (database.ChainInfo, error) {
	return e.store.ChainInfo()
}

// GetBlock looks up a block by its PoW hash.
func (e *Engine) GetBlock(hash [32]byte) (database.Block, bool, error) {
	return e.store.Block(hash)
}

// HeaderAtHeight looks up a header by height.
func (e *Engine) HeaderAtHeight(height uint64) (database.BlockHeader, bool, error) {
	return e.store.HeaderAtHeight(height)
}

// PublicKeyByIndex implements blssig.KeyResolver against the engine's
// store.
func (e *Engine) PublicKeyByIndex(idx uint64) ([]byte, bool, error) {
	return e.store.PublicKeyByIndex(idx)
}

// rebuildCache replaces the engine's PoW cache with one keyed by key.
// Handles to the prior cache must not be used once this returns; the
// engine never exposes the cache directly, only through PoWHash, so no
// external handle can outlive a rotation.
func (e *Engine) rebuildCache(key [32]byte) {
	e.evHandler("pow cache: rebuilding for epoch key %x", key)
	e.cache = pow.NewCache(key)
}

// PoWHash evaluates header.Concat()‖nonce against the engine's current
// epoch cache.
func (e *Engine) PoWHash(header database.BlockHeader, nonce []byte) [pow.OutputSize]byte {
	input := append(header.Concat(), nonce...)
	return e.cache.Hash(input)
}
