package database

import "github.com/padlocklabs/padlockd/foundation/blockchain/entry"

// BuildBlock assembles mempool entries plus a caller-supplied aggregate
// signature into a Block whose merkle root and entry_difficulty have
// already been computed. Hash and Header.Nonce are left empty for the
// caller's PoW search: assembly happens once, before mining begins.
func BuildBlock(entries []entry.MempoolEntry, aggregateSignature []byte, header BlockHeader, entryDifficultyMultiplier, maxAllowedEntryDifficulty float32) (Block, error) {
	plain := make([]entry.Entry, len(entries))
	for i, me := range entries {
		plain[i] = me.Entry
	}

	header.Signature = aggregateSignature

	blk := Block{Entries: plain, Header: header}

	root, err := blk.MerkleRoot()
	if err != nil {
		return Block{}, err
	}
	blk.Header.MerkleRoot = root

	entryDiff, err := blk.EntryDifficultySum(maxAllowedEntryDifficulty)
	if err != nil {
		return Block{}, err
	}
	blk.Header.EntryDifficulty = entryDiff
	blk.Header.EntryDifficultyMultiplier = entryDifficultyMultiplier
	blk.Header.MaxAllowedEntryDifficulty = maxAllowedEntryDifficulty

	return blk, nil
}
