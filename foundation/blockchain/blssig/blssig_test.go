package blssig_test

import (
	"testing"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/padlocklabs/padlockd/foundation/blockchain/blssig"
	"github.com/padlocklabs/padlockd/foundation/blockchain/entry"
)

var testDST = []byte("PADLOCKD_BLS12381_AGGREGATE_V1")

type fakeResolver map[uint64][]byte

func (f fakeResolver) PublicKeyByIndex(idx uint64) ([]byte, bool, error) {
	pk, ok := f[idx]
	return pk, ok, nil
}

func genKey(seed byte) (*blst.SecretKey, *blst.P1Affine) {
	s := make([]byte, 32)
	for i := range s {
		s[i] = seed
	}
	sk := blst.KeyGen(s)
	return sk, new(blst.P1Affine).From(sk)
}

func TestResolvePublicKeyInline(t *testing.T) {
	_, pk := genKey(0x01)
	e := entry.Entry{PublicKey: pk.Compress()}

	got, err := blssig.ResolvePublicKey(fakeResolver{}, e)
	if err != nil {
		t.Fatalf("ResolvePublicKey: %v", err)
	}
	if string(got) != string(pk.Compress()) {
		t.Fatal("expected the inline public key to be returned unchanged")
	}
}

func TestResolvePublicKeyIndexed(t *testing.T) {
	_, pk := genKey(0x02)
	idx := uint64(3)
	e := entry.Entry{PublicKeyIndex: &idx}

	resolver := fakeResolver{3: pk.Compress()}
	got, err := blssig.ResolvePublicKey(resolver, e)
	if err != nil {
		t.Fatalf("ResolvePublicKey: %v", err)
	}
	if string(got) != string(pk.Compress()) {
		t.Fatal("expected the resolved indexed public key")
	}
}

func TestResolvePublicKeyIndexedMissing(t *testing.T) {
	idx := uint64(5)
	e := entry.Entry{PublicKeyIndex: &idx}

	if _, err := blssig.ResolvePublicKey(fakeResolver{}, e); err == nil {
		t.Fatal("expected an error when the index has no registered key")
	}
}

func TestResolvePublicKeyNeitherSet(t *testing.T) {
	if _, err := blssig.ResolvePublicKey(fakeResolver{}, entry.Entry{}); err == nil {
		t.Fatal("expected an error when neither public key nor index is set")
	}
}

func TestVerifyAggregateSingleSigner(t *testing.T) {
	sk, pk := genKey(0x03)
	msg := []byte("hello entry")
	sig := new(blst.P2Affine).Sign(sk, msg, testDST)

	ok := blssig.VerifyAggregate(sig.Compress(), [][]byte{msg}, [][]byte{pk.Compress()})
	if !ok {
		t.Fatal("expected a valid single-signer aggregate to verify")
	}
}

func TestVerifyAggregateMultipleSigners(t *testing.T) {
	sk1, pk1 := genKey(0x04)
	sk2, pk2 := genKey(0x05)

	msg1 := []byte("entry one")
	msg2 := []byte("entry two")

	sig1 := new(blst.P2Affine).Sign(sk1, msg1, testDST)
	sig2 := new(blst.P2Affine).Sign(sk2, msg2, testDST)

	agg, err := blssig.AggregateSignatures([][]byte{sig1.Compress(), sig2.Compress()})
	if err != nil {
		t.Fatalf("AggregateSignatures: %v", err)
	}

	ok := blssig.VerifyAggregate(agg, [][]byte{msg1, msg2}, [][]byte{pk1.Compress(), pk2.Compress()})
	if !ok {
		t.Fatal("expected a valid two-signer aggregate to verify")
	}
}

func TestVerifyAggregateRejectsTamperedSignature(t *testing.T) {
	sk, pk := genKey(0x06)
	msg := []byte("entry")
	sig := new(blst.P2Affine).Sign(sk, msg, testDST).Compress()
	sig[0] ^= 0xff

	if blssig.VerifyAggregate(sig, [][]byte{msg}, [][]byte{pk.Compress()}) {
		t.Fatal("expected a tampered signature to fail verification")
	}
}

func TestVerifyAggregateRejectsWrongKey(t *testing.T) {
	sk, _ := genKey(0x07)
	_, otherPK := genKey(0x08)
	msg := []byte("entry")
	sig := new(blst.P2Affine).Sign(sk, msg, testDST)

	if blssig.VerifyAggregate(sig.Compress(), [][]byte{msg}, [][]byte{otherPK.Compress()}) {
		t.Fatal("expected verification against the wrong key to fail")
	}
}

func TestVerifyAggregateMismatchedLengths(t *testing.T) {
	if blssig.VerifyAggregate(nil, [][]byte{{1}, {2}}, [][]byte{{3}}) {
		t.Fatal("expected mismatched message/key counts to fail")
	}
}

func TestAggregateSignaturesRejectsMalformedInput(t *testing.T) {
	if _, err := blssig.AggregateSignatures(nil); err == nil {
		t.Fatal("expected an error aggregating zero signatures")
	}
	if _, err := blssig.AggregateSignatures([][]byte{{0x01, 0x02}}); err == nil {
		t.Fatal("expected an error aggregating a malformed signature")
	}
}
