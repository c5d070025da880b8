// Package state is the core API for the blockchain and implements all the
// business rules and processing: the block-acceptance pipeline, its
// rollback inverse, and the difficulty recomputation that follows both.
package state

import (
	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/pow"
)

// EventHandler defines a function that is called when events occur in the
// processing of persisting blocks. Passing a callback rather than a logger
// keeps this package decoupled from any particular logging library.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the chain-state
// engine.
type Config struct {
	DBPath    string
	EvHandler EventHandler
}

// TimestampToleranceSeconds is how far into the future, relative to
// info.network_adjusted_time, a block's timestamp may fall.
const TimestampToleranceSeconds = 3600

// New opens (or initializes) the store at cfg.DBPath and constructs the
// chain-state engine, building the initial PoW cache from the stored
// epoch key.
func New(cfg Config) (*Engine, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	store, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	info, err := store.ChainInfo()
	if err != nil {
		store.Close()
		return nil, err
	}

	info, changed, err := recoverTruncation(store, info)
	if err != nil {
		store.Close()
		return nil, err
	}
	if changed {
		ev("recovered from crash: truncated to height=%d hash=%x", info.Height, info.TopBlockHash)
		if err := store.PutChainInfo(info); err != nil {
			store.Close()
			return nil, err
		}
	}

	eng := &Engine{
		store:     store,
		evHandler: ev,
	}
	eng.rebuildCache(info.RandomxVMKey)

	return eng, nil
}

// recoverTruncation is the startup crash-recovery rule: if
// info.TopBlockHash names a block envelope that isn't actually on disk (a
// process died inside DelTopBlock after the block's records were deleted
// but before chain-info was rewritten, or the envelope was removed on its
// own via Store.DeleteBlockEnvelope), the top block is
// treated as never having existed. height is decremented and top_block_hash
// re-derived from the height index until the envelope it names is found, or
// the chain is empty. Dangling envelopes with no matching height→hash entry
// are left alone: they are garbage, not authoritative, and are simply never
// reachable again.
func recoverTruncation(store *database.Store, info database.ChainInfo) (database.ChainInfo, bool, error) {
	changed := false

	for info.Height > 0 {
		_, found, err := store.Block(info.TopBlockHash)
		if err != nil {
			return info, false, err
		}
		if found {
			break
		}

		changed = true
		info.Height--
		if info.Height == 0 {
			info.TopBlockHash = [32]byte{}
			info.IsEmpty = true
			break
		}

		hash, ok, err := store.HashAtHeight(info.Height)
		if err != nil {
			return info, false, err
		}
		if !ok {
			// No height index entry either; keep walking down.
			info.TopBlockHash = [32]byte{}
			continue
		}
		info.TopBlockHash = hash
	}

	if !changed {
		return info, false, nil
	}

	if err := recomputeControllers(store, &info); err != nil {
		return info, false, err
	}

	key, err := pow.EpochKeyForHeight(info.Height, store.HashAtHeight)
	if err != nil {
		return info, false, err
	}
	info.RandomxVMKey = key

	return info, true, nil
}

// Close releases the engine's store handle.
func (e *Engine) Close() error {
	return e.store.Close()
}
