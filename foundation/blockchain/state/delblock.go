package state

import (
	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/pow"
)

// DelTopBlock is AddBlock's inverse: it removes the current top block and
// restores the chain-info fields a prior AddBlock derived, including
// rolling back the PoW epoch key if the removed block was an epoch
// boundary.
func (e *Engine) DelTopBlock() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := e.store.ChainInfo()
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if info.IsEmpty {
		return database.NewChainError(database.KindBlockDoesntExist, nil)
	}

	hash, ok, err := e.store.HashAtHeight(info.Height)
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if !ok {
		return database.NewChainError(database.KindCantFindHashFromHeight, nil)
	}

	header, ok, err := e.store.BlockHeader(hash)
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if !ok {
		return database.NewChainError(database.KindBlockHeaderDoesntExist, nil)
	}

	removedHeight := info.Height
	wasEpochBoundary := pow.IsEpochBoundary(removedHeight)

	if err := e.store.DeleteBlockRecords(hash, removedHeight); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	info.Height--
	info.TopBlockHash = header.PreviousHash
	info.IsEmpty = info.Height == 0

	if err := recomputeControllers(e.store, &info); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if wasEpochBoundary {
		key, err := pow.RollbackKey(removedHeight, func(h uint64) ([32]byte, error) {
			hash, ok, err := e.store.HashAtHeight(h)
			if err != nil {
				return [32]byte{}, err
			}
			if !ok {
				return [32]byte{}, database.NewChainError(database.KindCantFindHashFromHeight, nil)
			}
			return hash, nil
		})
		if err != nil {
			return database.NewChainError(database.KindOther, err)
		}
		info.RandomxVMKey = key
	}

	if err := e.store.PutChainInfo(info); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if wasEpochBoundary {
		e.rebuildCache(info.RandomxVMKey)
	}

	e.evHandler("del top block: height=%d hash=%x", info.Height, hash)
	return nil
}
