package state_test

import (
	"path/filepath"
	"testing"
	"time"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/entry"
	"github.com/padlocklabs/padlockd/foundation/blockchain/state"
)

var testDST = []byte("PADLOCKD_BLS12381_AGGREGATE_V1")

func noopEvHandler(string, ...any) {}

// newTestEngine opens a fresh engine over a temp store whose chain-info has
// already been tweaked by mutate, so tests can install an easy work target
// (difficulty=1, any hash clears it) without mining.
func newTestEngine(t *testing.T, mutate func(*database.ChainInfo)) *state.Engine {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")

	store, err := database.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	info, err := store.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}
	if mutate != nil {
		mutate(&info)
	}
	if err := store.PutChainInfo(info); err != nil {
		t.Fatalf("PutChainInfo: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	eng, err := state.New(state.Config{DBPath: path, EvHandler: noopEvHandler})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// easyInfo installs a work target any hash clears and a comfortably large
// entry-difficulty ceiling, so tests can focus on one check at a time.
func easyInfo(info *database.ChainInfo) {
	info.Difficulty = 1
	info.MaxAllowedEntryDifficulty = 1 << 20
	info.EntryDifficultyMultiplier = 0
}

// signedEntry builds a single Entry with an inline public key and returns
// it alongside its detached BLS signature over its canonical bytes.
func signedEntry(t *testing.T, tag byte) (entry.Entry, []byte) {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = tag
	}
	sk := blst.KeyGen(seed)
	pk := new(blst.P1Affine).From(sk)

	e := entry.Entry{
		CoinfileHashes: [][8]byte{{tag}},
		OutputHash:     [8]byte{tag},
		PublicKey:      pk.Compress(),
		ProofOfWork:    []byte{tag},
	}

	msg, err := e.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	sig := new(blst.P2Affine).Sign(sk, msg, testDST)

	return e, sig.Compress()
}

// validBlock assembles a block that should clear every one of the 13
// acceptance checks against eng's current chain-info.
func validBlock(t *testing.T, eng *state.Engine) database.Block {
	t.Helper()

	info, err := eng.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}
	return validBlockAt(t, eng, info.NetworkAdjustedTime)
}

// validBlockAt is validBlock with the header timestamp pinned, for tests
// that chain several blocks and need their timestamps spaced apart.
func validBlockAt(t *testing.T, eng *state.Engine, timestamp uint64) database.Block {
	t.Helper()

	info, err := eng.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}

	e, sig := signedEntry(t, 0x01)
	mempool := []entry.MempoolEntry{entry.NewMempoolEntry(e, sig)}

	header := database.BlockHeader{
		PreviousHash:     info.TopBlockHash,
		Height:           info.Height + 1,
		Timestamp:        timestamp,
		DifficultyTarget: info.Difficulty,
		MinerAddress:     [32]byte{0x01},
	}

	blk, err := database.BuildBlock(mempool, sig, header, info.EntryDifficultyMultiplier, info.MaxAllowedEntryDifficulty)
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}

	blk.Header.Nonce = []byte{0}
	blk.Hash = eng.PoWHash(blk.Header, blk.Header.Nonce)
	return blk
}

func chainErrorKind(t *testing.T, err error) database.ChainErrorKind {
	t.Helper()
	ce, ok := err.(*database.ChainError)
	if !ok {
		t.Fatalf("expected a *database.ChainError, got %T (%v)", err, err)
	}
	return ce.Kind
}

func TestAddBlockAccepted(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)

	if err := eng.AddBlock(blk); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	info, err := eng.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}
	if info.Height != 1 || info.IsEmpty || info.TopBlockHash != blk.Hash {
		t.Fatalf("unexpected post-accept chain-info: %+v", info)
	}

	got, found, err := eng.GetBlock(blk.Hash)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if !found || got.Hash != blk.Hash {
		t.Fatalf("GetBlock after accept: found=%v hash=%x", found, got.Hash)
	}
}

func TestAddBlockAlreadyExists(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)

	if err := eng.AddBlock(blk); err != nil {
		t.Fatalf("first AddBlock: %v", err)
	}
	if err := eng.AddBlock(blk); err == nil {
		t.Fatal("expected an error re-adding the same block")
	} else if kind := chainErrorKind(t, err); kind != database.KindBlockAlreadyExists {
		t.Fatalf("kind = %v, want KindBlockAlreadyExists", kind)
	}
}

func TestAddBlockSkippedHeight(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.Height = 2 // chain is at height 0; this skips height 1

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindSkippedBlock {
		t.Fatalf("kind = %v, want KindSkippedBlock", kind)
	}
}

func TestAddBlockNotAtTop(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.Height = 0

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockNotAtTop {
		t.Fatalf("kind = %v, want KindBlockNotAtTop", kind)
	}
}

func TestAddBlockPreviousHashWrong(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.PreviousHash = [32]byte{0xff}

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockPreviousHashWrong {
		t.Fatalf("kind = %v, want KindBlockPreviousHashWrong", kind)
	}
}

func TestAddBlockTargetDifficultyWrong(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.DifficultyTarget = 999

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockTargetDifficultyWrong {
		t.Fatalf("kind = %v, want KindBlockTargetDifficultyWrong", kind)
	}
}

func TestAddBlockTimestampTooEarly(t *testing.T) {
	eng := newTestEngine(t, func(info *database.ChainInfo) {
		easyInfo(info)
		info.PastMedianTimestamp = uint64(time.Now().Unix())
	})
	blk := validBlock(t, eng)
	blk.Header.Timestamp = 1

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockTimestampTooEarly {
		t.Fatalf("kind = %v, want KindBlockTimestampTooEarly", kind)
	}
}

func TestAddBlockInFuture(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.Timestamp += state.TimestampToleranceSeconds + 1000

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockInFuture {
		t.Fatalf("kind = %v, want KindBlockInFuture", kind)
	}
}

func TestAddBlockNotEnoughWork(t *testing.T) {
	eng := newTestEngine(t, func(info *database.ChainInfo) {
		easyInfo(info)
		info.Difficulty = 1 << 30 // unreachable without real mining
	})
	blk := validBlock(t, eng)

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockNotEnoughWork {
		t.Fatalf("kind = %v, want KindBlockNotEnoughWork", kind)
	}
}

func TestAddBlockEntryDifficultyWrong(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.EntryDifficulty += 1

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockEntryDifficultyWrong {
		t.Fatalf("kind = %v, want KindBlockEntryDifficultyWrong", kind)
	}
}

func TestAddBlockMaxAllowedEntryDifficultyWrong(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.MaxAllowedEntryDifficulty += 1

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockMaxAllowedEntryDifficultyWrong {
		t.Fatalf("kind = %v, want KindBlockMaxAllowedEntryDifficultyWrong", kind)
	}
}

func TestAddBlockInvalidMerkleRoot(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.MerkleRoot[0] ^= 0xff

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindInvalidMerkleRoot {
		t.Fatalf("kind = %v, want KindInvalidMerkleRoot", kind)
	}
}

func TestAddBlockTooBig(t *testing.T) {
	eng := newTestEngine(t, func(info *database.ChainInfo) {
		easyInfo(info)
		info.BlockSizeCap = 1
	})
	blk := validBlock(t, eng)

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindBlockTooBig {
		t.Fatalf("kind = %v, want KindBlockTooBig", kind)
	}
}

func TestAddBlockInvalidSignature(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Header.Signature = append([]byte(nil), blk.Header.Signature...)
	blk.Header.Signature[0] ^= 0xff

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindInvalidSignature {
		t.Fatalf("kind = %v, want KindInvalidSignature", kind)
	}
}

func TestAddBlockEntryMutationInvalidatesMerkleRoot(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	info, err := eng.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}

	blk := validBlock(t, eng)
	blk.Entries[0].OutputHash[0] ^= 0xff

	// Re-derive the declared entry difficulty so the mutation is caught by
	// the merkle check, not the entry-difficulty consistency check that
	// runs before it.
	ed, err := blk.EntryDifficultySum(info.MaxAllowedEntryDifficulty)
	if err != nil {
		t.Fatalf("EntryDifficultySum: %v", err)
	}
	blk.Header.EntryDifficulty = ed

	err = eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindInvalidMerkleRoot {
		t.Fatalf("kind = %v, want KindInvalidMerkleRoot", kind)
	}
}

func TestAddBlockNoPublicKeyFound(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	info, err := eng.ChainInfo()
	if err != nil {
		t.Fatalf("ChainInfo: %v", err)
	}

	idx := uint64(7) // nothing registered yet on a fresh chain
	e := entry.Entry{
		CoinfileHashes: [][8]byte{{0x05}},
		OutputHash:     [8]byte{0x05},
		PublicKeyIndex: &idx,
		ProofOfWork:    []byte{0x05},
	}

	header := database.BlockHeader{
		PreviousHash:     info.TopBlockHash,
		Height:           info.Height + 1,
		Timestamp:        info.NetworkAdjustedTime,
		DifficultyTarget: info.Difficulty,
	}

	blk, err := database.BuildBlock(
		[]entry.MempoolEntry{entry.NewMempoolEntry(e, nil)},
		[]byte{0x01}, header,
		info.EntryDifficultyMultiplier, info.MaxAllowedEntryDifficulty,
	)
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	blk.Header.Nonce = []byte{0}
	blk.Hash = eng.PoWHash(blk.Header, blk.Header.Nonce)

	err = eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindNoPublicKeyFound {
		t.Fatalf("kind = %v, want KindNoPublicKeyFound", kind)
	}
}

func TestAddBlockInvalidHash(t *testing.T) {
	eng := newTestEngine(t, easyInfo)
	blk := validBlock(t, eng)
	blk.Hash = [32]byte{0xde, 0xad}

	err := eng.AddBlock(blk)
	if kind := chainErrorKind(t, err); kind != database.KindInvalidHash {
		t.Fatalf("kind = %v, want KindInvalidHash", kind)
	}
}
