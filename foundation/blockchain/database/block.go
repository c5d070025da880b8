package database

import (
	"encoding/binary"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/padlocklabs/padlockd/foundation/blockchain/bhash"
	"github.com/padlocklabs/padlockd/foundation/blockchain/entry"
	"github.com/padlocklabs/padlockd/foundation/blockchain/merkle"
)

// BlockHeader carries the fields that commit a block to its entries, its
// parent, and its proof of work. Only previous_hash, height, merkle_root,
// timestamp, difficulty_target, miner_address, and signature feed the PoW
// key concatenation (Concat); entry_difficulty, entry_difficulty_multiplier,
// max_allowed_entry_difficulty, and nonce are validated separately and are
// not part of what keys the PoW cache.
type BlockHeader struct {
	PreviousHash              [32]byte
	Height                    uint64
	MerkleRoot                [28]byte
	Timestamp                 uint64
	DifficultyTarget          float32
	EntryDifficulty           float32
	EntryDifficultyMultiplier float32
	MaxAllowedEntryDifficulty float32
	MinerAddress              [32]byte
	Signature                 []byte
	Nonce                     []byte
}

// Concat returns the ordered concatenation of header fields that keys the
// PoW cache: previous_hash ‖ height_LE8 ‖ merkle_root ‖ timestamp_LE8 ‖
// difficulty_target_LE4 ‖ miner_address ‖ signature.
func (h BlockHeader) Concat() []byte {
	out := make([]byte, 0, 32+8+28+8+4+32+len(h.Signature))
	out = append(out, h.PreviousHash[:]...)
	out = le8(h.Height, out)
	out = append(out, h.MerkleRoot[:]...)
	out = le8(h.Timestamp, out)
	out = le4Float(h.DifficultyTarget, out)
	out = append(out, h.MinerAddress[:]...)
	out = append(out, h.Signature...)
	return out
}

func le8(v uint64, out []byte) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}

func le4Float(v float32, out []byte) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return append(out, b[:]...)
}

// Block is an ordered set of entries, the header that commits to them, and
// the PoW hash that admits the block onto the chain.
type Block struct {
	Entries []entry.Entry
	Header  BlockHeader
	Hash    [32]byte
}

// wireBlock is the mid-point serialization: entries have been reduced to
// their canonical byte strings (so the on-chain bytes are exactly the
// bytes that were Merkle-hashed and signed), but everything else is the
// codec's native view.
type wireBlock struct {
	EntriesBytes [][]byte   `cbor:"1,keyasint"`
	Header       wireHeader `cbor:"2,keyasint"`
	Hash         [32]byte   `cbor:"3,keyasint"`
}

type wireHeader struct {
	PreviousHash              [32]byte `cbor:"1,keyasint"`
	Height                    uint64   `cbor:"2,keyasint"`
	MerkleRoot                [28]byte `cbor:"3,keyasint"`
	Timestamp                 uint64   `cbor:"4,keyasint"`
	DifficultyTarget          float32  `cbor:"5,keyasint"`
	EntryDifficulty           float32  `cbor:"6,keyasint"`
	EntryDifficultyMultiplier float32  `cbor:"7,keyasint"`
	MaxAllowedEntryDifficulty float32  `cbor:"8,keyasint"`
	MinerAddress              [32]byte `cbor:"9,keyasint"`
	Signature                 []byte   `cbor:"10,keyasint"`
	Nonce                     []byte   `cbor:"11,keyasint"`
}

// ToBytes serializes the block to its persistence envelope: entries as
// canonical byte strings, header and hash via CBOR.
func (b Block) ToBytes() ([]byte, error) {
	entriesBytes := make([][]byte, len(b.Entries))
	for i, e := range b.Entries {
		eb, err := e.ToBytes()
		if err != nil {
			return nil, err
		}
		entriesBytes[i] = eb
	}

	w := wireBlock{
		EntriesBytes: entriesBytes,
		Header:       toWireHeader(b.Header),
		Hash:         b.Hash,
	}

	return cbor.Marshal(w)
}

// BlockFromBytes deserializes a persisted block envelope.
func BlockFromBytes(data []byte) (Block, error) {
	var w wireBlock
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Block{}, err
	}

	entries := make([]entry.Entry, len(w.EntriesBytes))
	for i, eb := range w.EntriesBytes {
		e, err := entry.FromBytes(eb)
		if err != nil {
			return Block{}, err
		}
		entries[i] = e
	}

	return Block{
		Entries: entries,
		Header:  fromWireHeader(w.Header),
		Hash:    w.Hash,
	}, nil
}

// HeaderToBytes serializes just the header, for the height-indexed header
// record the store keeps separately from the full block envelope.
func HeaderToBytes(h BlockHeader) ([]byte, error) {
	return cbor.Marshal(toWireHeader(h))
}

// HeaderFromBytes deserializes a stored header record.
func HeaderFromBytes(data []byte) (BlockHeader, error) {
	var w wireHeader
	if err := cbor.Unmarshal(data, &w); err != nil {
		return BlockHeader{}, err
	}
	return fromWireHeader(w), nil
}

func toWireHeader(h BlockHeader) wireHeader {
	return wireHeader{
		PreviousHash:              h.PreviousHash,
		Height:                    h.Height,
		MerkleRoot:                h.MerkleRoot,
		Timestamp:                 h.Timestamp,
		DifficultyTarget:          h.DifficultyTarget,
		EntryDifficulty:           h.EntryDifficulty,
		EntryDifficultyMultiplier: h.EntryDifficultyMultiplier,
		MaxAllowedEntryDifficulty: h.MaxAllowedEntryDifficulty,
		MinerAddress:              h.MinerAddress,
		Signature:                 h.Signature,
		Nonce:                     h.Nonce,
	}
}

func fromWireHeader(w wireHeader) BlockHeader {
	return BlockHeader{
		PreviousHash:              w.PreviousHash,
		Height:                    w.Height,
		MerkleRoot:                w.MerkleRoot,
		Timestamp:                 w.Timestamp,
		DifficultyTarget:          w.DifficultyTarget,
		EntryDifficulty:           w.EntryDifficulty,
		EntryDifficultyMultiplier: w.EntryDifficultyMultiplier,
		MaxAllowedEntryDifficulty: w.MaxAllowedEntryDifficulty,
		MinerAddress:              w.MinerAddress,
		Signature:                 w.Signature,
		Nonce:                     w.Nonce,
	}
}

// MinerDifficulty returns 2^leading_zero_bits(block.Hash).
func (b Block) MinerDifficulty() float64 {
	bits := bhash.BlockLeadingZeroBits(b.Hash[:])
	return math.Pow(2, float64(bits))
}

// EntryDifficultySum sums each entry's per-entry difficulty and clamps the
// result to maxAllowed.
func (b Block) EntryDifficultySum(maxAllowed float32) (float32, error) {
	var total float64
	for _, e := range b.Entries {
		d, err := e.Difficulty()
		if err != nil {
			return 0, err
		}
		total += d
	}

	result := float32(total)
	if result > maxAllowed {
		result = maxAllowed
	}
	return result, nil
}

// Difficulty is block_difficulty: miner_difficulty + entry_difficulty *
// entry_difficulty_multiplier.
func (b Block) Difficulty() float64 {
	return b.MinerDifficulty() + float64(b.Header.EntryDifficulty)*float64(b.Header.EntryDifficultyMultiplier)
}

// MerkleRoot rebuilds the Merkle tree over b.Entries and returns its root.
func (b Block) MerkleRoot() ([28]byte, error) {
	entries := make([]merkleEntry, len(b.Entries))
	for i, e := range b.Entries {
		entries[i] = merkleEntry{e}
	}

	tree, err := merkle.New(entries)
	if err != nil {
		return [28]byte{}, err
	}
	return tree.Root, nil
}

// merkleEntry adapts entry.Entry to merkle.Leaf without entry importing
// merkle (entries are a lower-level concept than the tree built over them).
type merkleEntry struct {
	e entry.Entry
}

func (m merkleEntry) ToBytes() ([]byte, error) { return m.e.ToBytes() }

// IsMerkleRootValid reports whether header.MerkleRoot matches the root
// rebuilt from b.Entries.
func (b Block) IsMerkleRootValid() (bool, error) {
	root, err := b.MerkleRoot()
	if err != nil {
		return false, err
	}
	return root == b.Header.MerkleRoot, nil
}

// SerializedSize returns len(b.ToBytes()), used against the chain-info
// block_size_cap.
func (b Block) SerializedSize() (int, error) {
	bs, err := b.ToBytes()
	if err != nil {
		return 0, err
	}
	return len(bs), nil
}
