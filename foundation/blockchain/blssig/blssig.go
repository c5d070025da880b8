// Package blssig verifies the aggregate signature over a block's entries:
// BLS12-381 via blst, with 48-byte compressed public keys on G1 and
// signatures on G2. The scheme is fixed for the life of the chain and is
// never renegotiated.
package blssig

import (
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/padlocklabs/padlockd/foundation/blockchain/entry"
)

// dst is the domain separation tag mixed into every verification. A fixed
// per-chain DST is required by the BLS signature standard so signatures
// for this chain can never be replayed against another protocol using the
// same curve.
var dst = []byte("PADLOCKD_BLS12381_AGGREGATE_V1")

// KeyResolver resolves an entry's declared public key, following the
// inline-or-indexed rule: an entry carries either a raw public key or an
// index into the store's registered-key table, never both.
type KeyResolver interface {
	PublicKeyByIndex(idx uint64) ([]byte, bool, error)
}

// ResolvePublicKey returns the raw 48-byte public key an entry signed
// under, reading from resolver only when the entry carries an index
// rather than an inline key.
func ResolvePublicKey(resolver KeyResolver, e entry.Entry) ([]byte, error) {
	if e.PublicKey != nil {
		return e.PublicKey, nil
	}
	if e.PublicKeyIndex == nil {
		return nil, fmt.Errorf("entry carries neither a public key nor an index")
	}

	pk, ok, err := resolver.PublicKeyByIndex(*e.PublicKeyIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no public key registered at index %d", *e.PublicKeyIndex)
	}
	return pk, nil
}

// AggregateSignatures combines detached per-entry BLS signatures, gathered
// from a block's mempool entries, into the single aggregate signature
// carried in the block header.
func AggregateSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("cannot aggregate zero signatures")
	}

	for i, s := range sigs {
		if new(blst.P2Affine).Uncompress(s) == nil {
			return nil, fmt.Errorf("signature %d is malformed", i)
		}
	}

	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(sigs, true) {
		return nil, fmt.Errorf("signature aggregation failed")
	}

	return agg.ToAffine().Compress(), nil
}

// VerifyAggregate verifies a single aggregate signature against one
// message per public key: messages[i] was signed under keys[i]. It
// reports false (never an error) on any malformed key, malformed
// signature, or failed verification — callers fold every negative result
// into the same InvalidSignature chain error.
func VerifyAggregate(sig []byte, messages [][]byte, keys [][]byte) bool {
	if len(messages) != len(keys) || len(messages) == 0 {
		return false
	}

	pubKeys := make([]*blst.P1Affine, len(keys))
	for i, k := range keys {
		pk := new(blst.P1Affine).Uncompress(k)
		if pk == nil {
			return false
		}
		pubKeys[i] = pk
	}

	aggSig := new(blst.P2Affine).Uncompress(sig)
	if aggSig == nil {
		return false
	}

	return aggSig.AggregateVerify(true, pubKeys, true, messages, dst)
}
