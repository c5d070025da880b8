// Command scratch is a manual exercise of the chain-state library for
// local experimentation: it signs a single entry, assembles a block
// around it, mines at a low difficulty, and appends it to a fresh store.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"time"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/entry"
	"github.com/padlocklabs/padlockd/foundation/blockchain/state"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() error {
	dir, err := os.MkdirTemp("", "padlockd-scratch-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	eng, err := state.New(state.Config{
		DBPath: dir + "/scratch.db",
		EvHandler: func(v string, args ...any) {
			fmt.Printf(v+"\n", args...)
		},
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	sk := blst.KeyGen([]byte("padlockd scratch tool deterministic seed 000000"))
	pk := new(blst.P1Affine).From(sk)

	e := entry.Entry{
		CoinfileHashes: [][8]byte{{}},
		OutputHash:     [8]byte{},
		PublicKey:      pk.Compress(),
		ProofOfWork:    []byte{0x02, 0x02, 0x02, 0x02},
	}

	msg, err := e.ToBytes()
	if err != nil {
		return err
	}

	sig := new(blst.P2Affine).Sign(sk, msg, signatureDST)

	info, err := eng.ChainInfo()
	if err != nil {
		return err
	}

	header := database.BlockHeader{
		PreviousHash:     info.TopBlockHash,
		Height:           info.Height + 1,
		Timestamp:        uint64(time.Now().Unix()),
		DifficultyTarget: info.Difficulty,
		MinerAddress:     [32]byte{0x01},
	}

	blk, err := database.BuildBlock(
		[]entry.MempoolEntry{entry.NewMempoolEntry(e, sig.Compress())},
		sig.Compress(),
		header,
		info.EntryDifficultyMultiplier,
		info.MaxAllowedEntryDifficulty,
	)
	if err != nil {
		return err
	}

	if err := mine(eng, &blk, info.Difficulty); err != nil {
		return err
	}

	if err := eng.AddBlock(blk); err != nil {
		return fmt.Errorf("add block: %w", err)
	}

	fmt.Printf("mined and accepted block at height %d, hash %x\n", blk.Header.Height, blk.Hash)
	return nil
}

// signatureDST must match blssig's verification DST for AggregateVerify to
// accept a single-signer "aggregate" over one message.
var signatureDST = []byte("PADLOCKD_BLS12381_AGGREGATE_V1")

// mine searches nonces until blk's PoW hash clears target, filling in
// blk.Header.Nonce and blk.Hash. Brute force is fine here: the scratch
// tool runs against the default difficulty, not a production target.
func mine(eng *state.Engine, blk *database.Block, target float32) error {
	for nonce := uint64(0); ; nonce++ {
		nb := make([]byte, 8)
		binary.LittleEndian.PutUint64(nb, nonce)
		blk.Header.Nonce = nb

		blk.Hash = eng.PoWHash(blk.Header, blk.Header.Nonce)

		blockDifficulty := blk.MinerDifficulty() + float64(blk.Header.EntryDifficulty)*float64(blk.Header.EntryDifficultyMultiplier)
		if blockDifficulty >= float64(target) {
			return nil
		}
		if nonce > 5_000_000 {
			return fmt.Errorf("gave up mining after 5,000,000 nonces")
		}
	}
}
