// Package database handles all the lower-level support for maintaining the
// chain in storage: the typed key-prefix scheme over a generic KV store,
// block/header persistence, the singleton chain-info record, and the
// canonical block/header byte layouts used both for hashing and for disk.
package database

import (
	"time"

	"github.com/padlocklabs/padlockd/foundation/blockchain/pow"
)

// Default chain-info values written the first time a store is opened.
const (
	DefaultDifficulty                = 256
	DefaultEntryDifficultyMultiplier = 0.005
	DefaultMaxAllowedEntryDifficulty = 4096
	DefaultBlockSizeCap              = 250000
)

// ChainInfo is the singleton record describing the chain's current tip and
// consensus parameters. It is read on open and rewritten after every
// accepted or rolled-back block.
type ChainInfo struct {
	IsEmpty                   bool
	TopBlockHash              [32]byte
	PastMedianTimestamp       uint64
	NetworkAdjustedTime       uint64
	Difficulty                float32
	RandomxVMKey              [32]byte
	EntryDifficultyMultiplier float32
	MaxAllowedEntryDifficulty float32
	BlockSizeCap              int
	Height                    uint64
}

// NewDefaultChainInfo returns the chain-info record written when a store is
// opened for the first time: an empty chain at height 0, the all-zero PoW
// key epoch, and the consensus defaults above.
func NewDefaultChainInfo(now time.Time) ChainInfo {
	return ChainInfo{
		IsEmpty:                   true,
		TopBlockHash:              [32]byte{},
		PastMedianTimestamp:       0,
		NetworkAdjustedTime:       uint64(now.Unix()),
		Difficulty:                DefaultDifficulty,
		RandomxVMKey:              pow.ZeroKey,
		EntryDifficultyMultiplier: DefaultEntryDifficultyMultiplier,
		MaxAllowedEntryDifficulty: DefaultMaxAllowedEntryDifficulty,
		BlockSizeCap:              DefaultBlockSizeCap,
		Height:                    0,
	}
}
