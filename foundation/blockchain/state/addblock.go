package state

import (
	"github.com/padlocklabs/padlockd/foundation/blockchain/blssig"
	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/difficulty"
	"github.com/padlocklabs/padlockd/foundation/blockchain/pow"
)

// AddBlock runs the 13 ordered acceptance checks against blk and, if all
// pass, persists it and recomputes the chain's difficulty controllers. The
// first failing check aborts with its ChainError kind and leaves state
// unchanged.
func (e *Engine) AddBlock(blk database.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := e.store.ChainInfo()
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if _, found, err := e.store.Block(blk.Hash); err != nil {
		return database.NewChainError(database.KindOther, err)
	} else if found {
		return database.NewChainError(database.KindBlockAlreadyExists, nil)
	}

	switch {
	case blk.Header.Height > info.Height+1:
		return database.NewChainError(database.KindSkippedBlock, nil)
	case blk.Header.Height != info.Height+1:
		return database.NewChainError(database.KindBlockNotAtTop, nil)
	}

	if blk.Header.PreviousHash != info.TopBlockHash {
		return database.NewChainError(database.KindBlockPreviousHashWrong, nil)
	}

	if blk.Header.DifficultyTarget != info.Difficulty {
		return database.NewChainError(database.KindBlockTargetDifficultyWrong, nil)
	}

	if blk.Header.Timestamp < info.PastMedianTimestamp {
		return database.NewChainError(database.KindBlockTimestampTooEarly, nil)
	}
	if blk.Header.Timestamp > info.NetworkAdjustedTime+TimestampToleranceSeconds {
		return database.NewChainError(database.KindBlockInFuture, nil)
	}

	// block_difficulty uses the chain's currently active multiplier, not
	// the header's own entry_difficulty_multiplier snapshot: only
	// difficulty_target, entry_difficulty, and max_allowed_entry_difficulty
	// are checked against chain-info (checks 4, 8, 9), so the multiplier
	// that gates acceptance here is always the one info currently holds.
	blockDifficulty := blk.MinerDifficulty() + float64(blk.Header.EntryDifficulty)*float64(info.EntryDifficultyMultiplier)
	if blockDifficulty < float64(info.Difficulty) {
		return database.NewChainError(database.KindBlockNotEnoughWork, nil)
	}

	wantEntryDiff, err := blk.EntryDifficultySum(info.MaxAllowedEntryDifficulty)
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if blk.Header.EntryDifficulty != wantEntryDiff {
		return database.NewChainError(database.KindBlockEntryDifficultyWrong, nil)
	}

	if blk.Header.MaxAllowedEntryDifficulty != info.MaxAllowedEntryDifficulty {
		return database.NewChainError(database.KindBlockMaxAllowedEntryDifficultyWrong, nil)
	}

	validRoot, err := blk.IsMerkleRootValid()
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if !validRoot {
		return database.NewChainError(database.KindInvalidMerkleRoot, nil)
	}

	size, err := blk.SerializedSize()
	if err != nil {
		return database.NewChainError(database.KindOther, err)
	}
	if size > info.BlockSizeCap {
		return database.NewChainError(database.KindBlockTooBig, nil)
	}

	if err := e.verifySignatures(blk); err != nil {
		return err
	}

	wantHash := e.PoWHash(blk.Header, blk.Header.Nonce)
	if wantHash != blk.Hash {
		return database.NewChainError(database.KindInvalidHash, nil)
	}

	info.Height++
	info.TopBlockHash = blk.Hash
	info.IsEmpty = false

	if err := e.store.WriteBlockRecords(blk); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if err := recomputeControllers(e.store, &info); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if pow.IsEpochBoundary(info.Height) {
		info.RandomxVMKey = info.TopBlockHash
	}

	if err := e.store.PutChainInfo(info); err != nil {
		return database.NewChainError(database.KindOther, err)
	}

	if pow.IsEpochBoundary(info.Height) {
		e.rebuildCache(info.RandomxVMKey)
	}

	e.evHandler("add block: height=%d hash=%x", info.Height, blk.Hash)
	return nil
}

// verifySignatures resolves each entry's public key and aggregate-verifies
// the header's signature against the per-entry messages in one call.
func (e *Engine) verifySignatures(blk database.Block) error {
	messages := make([][]byte, len(blk.Entries))
	keys := make([][]byte, len(blk.Entries))

	for i, ent := range blk.Entries {
		pk, err := blssig.ResolvePublicKey(e, ent)
		if err != nil {
			return database.NewChainError(database.KindNoPublicKeyFound, err)
		}
		keys[i] = pk

		msg, err := ent.ToBytes()
		if err != nil {
			return database.NewChainError(database.KindOther, err)
		}
		messages[i] = msg
	}

	if !blssig.VerifyAggregate(blk.Header.Signature, messages, keys) {
		return database.NewChainError(database.KindInvalidSignature, nil)
	}
	return nil
}

// recomputeControllers updates info's past_median_timestamp, difficulty,
// and entry-difficulty bounds from the window of headers now ending at
// info.Height (assumed already incremented/decremented by the caller).
func recomputeControllers(store *database.Store, info *database.ChainInfo) error {
	if info.Height == 0 {
		return nil
	}

	medianHeight := difficulty.MedianTimestampHeight(info.Height)
	medianHeader, ok, err := store.HeaderAtHeight(medianHeight)
	if err != nil {
		return err
	}
	if ok {
		info.PastMedianTimestamp = medianHeader.Timestamp
	}

	if info.Height < 2 {
		return nil
	}

	n := difficulty.WindowSize(info.Height)
	headers, err := difficulty.Window(info.Height, n, store.HeaderAtHeight)
	if err != nil {
		return err
	}

	result, ok := difficulty.Recompute(headers)
	if !ok {
		return nil
	}

	info.Difficulty = result.Difficulty
	info.EntryDifficultyMultiplier = result.EntryDifficultyMultiplier
	info.MaxAllowedEntryDifficulty = result.MaxAllowedEntryDifficulty
	return nil
}
