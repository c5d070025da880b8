package database

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fxamacker/cbor/v2"
)

// Key-prefix tags. Every key in the chain bucket except the reserved
// chainInfoKey literal starts with one of these, followed by the
// tag-specific suffix (a block hash, a height, or a public key).
const (
	tagBlock       byte = 0x01
	tagBlockHeader byte = 0x02
	tagBlockHeight byte = 0x03
	tagPublicKey   byte = 0x04
)

// chainInfoKey is the one key in the bucket that carries no tag byte: the
// singleton ChainInfo record.
var chainInfoKey = []byte("blockchain_info")

var chainBucket = []byte("chain")

// Store is the ordered key-value persistence layer for the chain: blocks,
// headers, the height index, registered public keys, and the singleton
// chain-info record, all in one bbolt bucket keyed by tag.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and ensures
// the chain bucket and, if the database is new, the default chain-info
// record exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Store{db: db}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(chainBucket)
		if err != nil {
			return err
		}

		if b.Get(chainInfoKey) != nil {
			return nil
		}

		info := NewDefaultChainInfo(time.Now())
		raw, err := cbor.Marshal(info)
		if err != nil {
			return err
		}
		return b.Put(chainInfoKey, raw)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(hash [32]byte) []byte {
	return append([]byte{tagBlock}, hash[:]...)
}

func blockHeaderKey(hash [32]byte) []byte {
	return append([]byte{tagBlockHeader}, hash[:]...)
}

func blockHeightKey(height uint64) []byte {
	k := make([]byte, 9)
	k[0] = tagBlockHeight
	binary.LittleEndian.PutUint64(k[1:], height)
	return k
}

func publicKeyKey(pk []byte) []byte {
	return append([]byte{tagPublicKey}, pk...)
}

// ChainInfo returns the current chain-info record.
func (s *Store) ChainInfo() (ChainInfo, error) {
	var info ChainInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(chainBucket).Get(chainInfoKey)
		if raw == nil {
			return fmt.Errorf("chain-info record missing")
		}
		return cbor.Unmarshal(raw, &info)
	})
	return info, err
}

// PutChainInfo overwrites the chain-info record.
func (s *Store) PutChainInfo(info ChainInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		raw, err := cbor.Marshal(info)
		if err != nil {
			return err
		}
		return tx.Bucket(chainBucket).Put(chainInfoKey, raw)
	})
}

// Block looks up a full block by its hash.
func (s *Store) Block(hash [32]byte) (Block, bool, error) {
	var blk Block
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(chainBucket).Get(blockKey(hash))
		if raw == nil {
			return nil
		}
		found = true
		var err error
		blk, err = BlockFromBytes(raw)
		return err
	})
	return blk, found, err
}

// BlockHeader looks up a block header by the block's hash.
func (s *Store) BlockHeader(hash [32]byte) (BlockHeader, bool, error) {
	var h BlockHeader
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(chainBucket).Get(blockHeaderKey(hash))
		if raw == nil {
			return nil
		}
		found = true
		var err error
		h, err = HeaderFromBytes(raw)
		return err
	})
	return h, found, err
}

// HeaderAtHeight resolves the header recorded at height, following the
// height→hash index and then the header record.
func (s *Store) HeaderAtHeight(height uint64) (BlockHeader, bool, error) {
	hash, ok, err := s.HashAtHeight(height)
	if err != nil || !ok {
		return BlockHeader{}, ok, err
	}
	return s.BlockHeader(hash)
}

// HashAtHeight resolves the block hash recorded at height.
func (s *Store) HashAtHeight(height uint64) ([32]byte, bool, error) {
	var hash [32]byte
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(chainBucket).Get(blockHeightKey(height))
		if raw == nil {
			return nil
		}
		found = true
		copy(hash[:], raw)
		return nil
	})
	return hash, found, err
}

// HasPublicKey reports whether pk has been registered via an earlier
// entry's inline public key.
func (s *Store) HasPublicKey(pk []byte) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(chainBucket).Get(publicKeyKey(pk)) != nil
		return nil
	})
	return found, err
}

// PublicKeyByIndex resolves a public_key_index to the key that was
// registered at that index. Indices are assigned in registration order
// starting at 0; the mapping is stored under a height-style key off the
// tagPublicKey space reserved for the index counter.
func (s *Store) PublicKeyByIndex(idx uint64) ([]byte, bool, error) {
	var pk []byte
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(chainBucket).Get(publicKeyIndexKey(idx))
		if raw == nil {
			return nil
		}
		found = true
		pk = append([]byte(nil), raw...)
		return nil
	})
	return pk, found, err
}

// publicKeyIndexKey is tagPublicKey followed by the LE index. Raw public
// keys are 48 bytes, so the two key shapes can't collide.
func publicKeyIndexKey(idx uint64) []byte {
	k := make([]byte, 9)
	k[0] = tagPublicKey
	binary.LittleEndian.PutUint64(k[1:], idx)
	return k
}

// WriteBlockRecords atomically persists a newly accepted block's envelope,
// header record, height index, and any newly registered public keys
// (assigned the next sequential index). It does not touch chain-info: the
// difficulty controller recompute that follows a successful append reads
// the just-written header back out of the store, so chain-info is written
// separately afterward via PutChainInfo once recompute has run.
func (s *Store) WriteBlockRecords(blk Block) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chainBucket)

		blockBytes, err := blk.ToBytes()
		if err != nil {
			return err
		}
		if err := b.Put(blockKey(blk.Hash), blockBytes); err != nil {
			return err
		}

		if err := b.Put(blockHeightKey(blk.Header.Height), blk.Hash[:]); err != nil {
			return err
		}

		headerBytes, err := HeaderToBytes(blk.Header)
		if err != nil {
			return err
		}
		if err := b.Put(blockHeaderKey(blk.Hash), headerBytes); err != nil {
			return err
		}

		for _, e := range blk.Entries {
			if e.PublicKey == nil {
				continue
			}
			key := publicKeyKey(e.PublicKey)
			if b.Get(key) != nil {
				continue
			}
			nextIdx, err := nextPublicKeyIndex(b)
			if err != nil {
				return err
			}
			if err := b.Put(key, []byte{1}); err != nil {
				return err
			}
			if err := b.Put(publicKeyIndexKey(nextIdx), e.PublicKey); err != nil {
				return err
			}
		}

		return nil
	})
}

var publicKeyCounterKey = append([]byte{tagPublicKey}, 0xfe)

func nextPublicKeyIndex(b *bbolt.Bucket) (uint64, error) {
	raw := b.Get(publicKeyCounterKey)
	var next uint64
	if raw != nil {
		next = binary.LittleEndian.Uint64(raw) + 1
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, next)
	if err := b.Put(publicKeyCounterKey, out); err != nil {
		return 0, err
	}
	return next, nil
}

// DeleteBlockEnvelope removes only a block's envelope record, leaving its
// header and height index entry in place. It exists for recovery-path
// testing and for a future pruning mode that keeps headers while discarding
// full entry bodies; state.New's crash-truncation check relies on exactly
// this envelope/header split being possible.
func (s *Store) DeleteBlockEnvelope(hash [32]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainBucket).Delete(blockKey(hash))
	})
}

// DeleteBlockRecords removes a block's envelope, header, and height index
// entry, leaving chain-info untouched (see WriteBlockRecords: the
// difficulty controller recompute that follows a rollback reads the
// now-shorter header window back out of the store before chain-info is
// rewritten via PutChainInfo). It does not unregister public keys: once
// registered, a public_key_index remains resolvable even if the block that
// introduced it is later rolled back, matching the append-only nature of
// the index assignment.
func (s *Store) DeleteBlockRecords(hash [32]byte, height uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(chainBucket)

		if err := b.Delete(blockKey(hash)); err != nil {
			return err
		}
		if err := b.Delete(blockHeaderKey(hash)); err != nil {
			return err
		}
		return b.Delete(blockHeightKey(height))
	})
}
