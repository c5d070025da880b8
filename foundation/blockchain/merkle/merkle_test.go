package merkle_test

import (
	"testing"

	"github.com/padlocklabs/padlockd/foundation/blockchain/bhash"
	"github.com/padlocklabs/padlockd/foundation/blockchain/merkle"
)

type rawLeaf []byte

func (r rawLeaf) ToBytes() ([]byte, error) { return r, nil }

func TestSingleLeafTree(t *testing.T) {
	leaves := []rawLeaf{{0x00, 0x00}}

	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := bhash.MerkleHash([]byte{0x00, 0x00})
	if tree.Root != want {
		t.Fatalf("root = %x, want %x", tree.Root, want)
	}

	proof, err := tree.Proof(want)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if !proof.Verify(tree.Root) {
		t.Fatal("proof should verify against the real root")
	}

	var zero [28]byte
	if proof.Verify(zero) {
		t.Fatal("proof should not verify against an unrelated root")
	}
}

func TestFiveLeafTreeOddPromotion(t *testing.T) {
	leaves := []rawLeaf{
		repeat(0x00, 2),
		repeat(0x0a, 5),
		repeat(0xa2, 2),
		repeat(0x01, 12),
		repeat(0xfe, 27),
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	target := bhash.MerkleHash(leaves[1])
	proof, err := tree.Proof(target)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if !proof.Verify(tree.Root) {
		t.Fatal("proof for leaf 1 should verify")
	}

	var zero [28]byte
	if proof.Verify(zero) {
		t.Fatal("proof should not verify against an unrelated root")
	}
}

func TestEmptyLeavesRejected(t *testing.T) {
	if _, err := merkle.New([]rawLeaf{}); err == nil {
		t.Fatal("expected an error building a tree from zero leaves")
	}
}

func repeat(b byte, n int) rawLeaf {
	out := make(rawLeaf, n)
	for i := range out {
		out[i] = b
	}
	return out
}
