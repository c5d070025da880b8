// Package entry implements the canonical byte layout of a self-standing
// unit of work (an Entry) and the mempool-side signature wrapper around it.
package entry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/padlocklabs/padlockd/foundation/blockchain/bhash"
)

const (
	// MaxCoinfileHashes is the per-entry cap on coinfile_hashes length.
	MaxCoinfileHashes = 255
	// MaxProofOfWork is the per-entry cap on proof_of_work length.
	MaxProofOfWork = 255

	coinfileHashLen = 8
	outputHashLen   = 8
	publicKeyLen    = 48
	publicKeyIdxLen = 8
)

// discriminant values for the public-key-or-index byte.
const (
	discriminantPublicKey      = 0x00
	discriminantPublicKeyIndex = 0x01
)

// Entry is a self-standing unit of work. Exactly one of PublicKey or
// PublicKeyIndex must be set.
type Entry struct {
	CoinfileHashes [][8]byte
	OutputHash     [8]byte
	PublicKey      []byte // 48 bytes when present
	PublicKeyIndex *uint64
	ProofOfWork    []byte
}

// Kind classifies why ToBytes/FromBytes rejected an entry.
type Kind int

const (
	KindOther Kind = iota
	KindTooManyCoinfileHashes
	KindPoWTooLong
	KindNoPublicKeyFound
	KindMalformed
)

// Error wraps a Kind with an optional cause, mirroring the two-layer model
// used throughout the chain packages.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("entry: %v", e.Cause)
	}
	return fmt.Sprintf("entry: kind %d", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind) error { return &Error{Kind: kind} }

// ToBytes serializes the entry to its canonical little-endian byte layout:
//
//	u8      coinfile_hashes_len (1..=255)
//	u8[8*n] coinfile hashes, in order
//	u8[8]   output_hash
//	u8      discriminant (0 => public_key follows, 1 => public_key_index follows)
//	u8[48] | u8[8]  public_key or LE u64 index
//	u8      proof_of_work_len (0..=255)
//	u8[pow_len]     proof_of_work
func (e Entry) ToBytes() ([]byte, error) {
	if len(e.CoinfileHashes) > MaxCoinfileHashes {
		return nil, newErr(KindTooManyCoinfileHashes)
	}
	if len(e.ProofOfWork) > MaxProofOfWork {
		return nil, newErr(KindPoWTooLong)
	}

	var keyBytes []byte
	discriminant := byte(discriminantPublicKey)
	switch {
	case e.PublicKey != nil:
		keyBytes = e.PublicKey
	case e.PublicKeyIndex != nil:
		discriminant = discriminantPublicKeyIndex
		keyBytes = make([]byte, publicKeyIdxLen)
		binary.LittleEndian.PutUint64(keyBytes, *e.PublicKeyIndex)
	default:
		return nil, newErr(KindNoPublicKeyFound)
	}

	out := make([]byte, 0, 1+len(e.CoinfileHashes)*coinfileHashLen+outputHashLen+1+len(keyBytes)+1+len(e.ProofOfWork))
	out = append(out, byte(len(e.CoinfileHashes)))
	for _, h := range e.CoinfileHashes {
		out = append(out, h[:]...)
	}
	out = append(out, e.OutputHash[:]...)
	out = append(out, discriminant)
	out = append(out, keyBytes...)
	out = append(out, byte(len(e.ProofOfWork)))
	out = append(out, e.ProofOfWork...)

	return out, nil
}

// FromBytes deserializes the canonical byte layout, failing strictly if
// trailing bytes remain.
func FromBytes(b []byte) (Entry, error) {
	r := reader{buf: b}

	n, err := r.byte()
	if err != nil {
		return Entry{}, err
	}

	hashes := make([][8]byte, n)
	for i := range hashes {
		chunk, err := r.take(coinfileHashLen)
		if err != nil {
			return Entry{}, err
		}
		copy(hashes[i][:], chunk)
	}

	outputChunk, err := r.take(outputHashLen)
	if err != nil {
		return Entry{}, err
	}
	var output [8]byte
	copy(output[:], outputChunk)

	discriminant, err := r.byte()
	if err != nil {
		return Entry{}, err
	}

	e := Entry{CoinfileHashes: hashes, OutputHash: output}

	switch discriminant {
	case discriminantPublicKey:
		keyChunk, err := r.take(publicKeyLen)
		if err != nil {
			return Entry{}, err
		}
		e.PublicKey = append([]byte{}, keyChunk...)
	case discriminantPublicKeyIndex:
		idxChunk, err := r.take(publicKeyIdxLen)
		if err != nil {
			return Entry{}, err
		}
		idx := binary.LittleEndian.Uint64(idxChunk)
		e.PublicKeyIndex = &idx
	default:
		return Entry{}, newErr(KindMalformed)
	}

	powLen, err := r.byte()
	if err != nil {
		return Entry{}, err
	}
	powChunk, err := r.take(int(powLen))
	if err != nil {
		return Entry{}, err
	}
	e.ProofOfWork = append([]byte{}, powChunk...)

	if !r.empty() {
		return Entry{}, newErr(KindMalformed)
	}

	return e, nil
}

// Hash returns the 64-byte Blake2b-512 digest of the entry's canonical
// serialization, used solely to measure entry difficulty.
func (e Entry) Hash() ([64]byte, error) {
	b, err := e.ToBytes()
	if err != nil {
		return [64]byte{}, err
	}
	return bhash.EntryHash(b), nil
}

// Difficulty returns 2^leading_zero_bits(entry_hash(serialized_entry)) as a
// float64 so it can't overflow for pathologically high leading-zero counts
// before being folded into the float32 header fields that carry it.
func (e Entry) Difficulty() (float64, error) {
	h, err := e.Hash()
	if err != nil {
		return 0, err
	}
	bits := bhash.EntryLeadingZeroBits(h[:])
	return math.Pow(2, float64(bits)), nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte() (byte, error) {
	chunk, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return chunk[0], nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, newErr(KindMalformed)
	}
	chunk := r.buf[r.pos : r.pos+n]
	r.pos += n
	return chunk, nil
}

func (r *reader) empty() bool { return r.pos == len(r.buf) }
