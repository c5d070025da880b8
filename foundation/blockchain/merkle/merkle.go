// Package merkle builds a binary Merkle tree over ordered, variable-length
// leaves and produces inclusion proofs. Layers are kept as an arena of
// contiguous node slices; parent/child relationships are indices into
// adjacent layers, never owning references, so the tree can't form cycles
// and each layer stays a flat, cache-friendly sequence.
package merkle

import (
	"github.com/padlocklabs/padlockd/foundation/blockchain/bhash"
)

// Leaf is anything that can be canonically serialized for hashing. Entries
// implement this, but the tree is not specific to entries.
type Leaf interface {
	ToBytes() ([]byte, error)
}

// Hash is the tree's node hash type: 28 bytes, per bhash.MerkleHash.
type Hash = [bhash.MerkleSize]byte

// node is one position in a layer. Index fields are positions within their
// own layer slice (children) or the parent layer slice (parent) — never
// pointers — so layers can be stored as plain slices of value types.
type node struct {
	hash            Hash
	index           int
	leftChildIndex  int
	rightChildIndex *int
	parentIndex     *int
}

type layer []node

// Tree is a built Merkle tree: an ordered stack of layers, the last of
// which holds exactly one node whose hash is Root.
type Tree struct {
	Root   Hash
	layers []layer
}

// New builds a Merkle tree from ordered leaves. Zero leaves is an error:
// an empty entry set is rejected at the block level before a tree is ever
// built, so there is no meaningful root for it to produce.
func New[T Leaf](leaves []T) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, errEmptyLeaves
	}

	first := make(layer, len(leaves))
	for i, leaf := range leaves {
		b, err := leaf.ToBytes()
		if err != nil {
			return nil, err
		}
		first[i] = node{
			hash:           bhash.MerkleHash(b),
			index:          i,
			leftChildIndex: i,
		}
	}

	layers := []layer{first}
	for layers[len(layers)-1].len() > 1 {
		next := nextLayer(layers[len(layers)-1])
		layers = append(layers, next)
	}

	return &Tree{
		Root:   layers[len(layers)-1][0].hash,
		layers: layers,
	}, nil
}

func (l layer) len() int { return len(l) }

// nextLayer pairs adjacent nodes in cur, hashing (left, right) together. A
// trailing unpaired node is promoted verbatim — its hash is carried up
// unchanged rather than duplicated — and cur's nodes have their parentIndex
// set so proof generation can walk upward.
func nextLayer(cur layer) layer {
	var next layer

	for i := 0; i < len(cur); i += 2 {
		parentIdx := len(next)

		if i+1 >= len(cur) {
			// Odd node out: promote its hash unchanged.
			next = append(next, node{
				hash:           cur[i].hash,
				index:          parentIdx,
				leftChildIndex: i,
			})
			cur[i].parentIndex = intPtr(parentIdx)
			break
		}

		left, right := cur[i], cur[i+1]
		combined := append(append([]byte{}, left.hash[:]...), right.hash[:]...)
		next = append(next, node{
			hash:            bhash.MerkleHash(combined),
			index:           parentIdx,
			leftChildIndex:  i,
			rightChildIndex: intPtr(i + 1),
		})
		cur[i].parentIndex = intPtr(parentIdx)
		cur[i+1].parentIndex = intPtr(parentIdx)
	}

	return next
}

func intPtr(i int) *int {
	return &i
}

type merkleError string

func (e merkleError) Error() string { return string(e) }

const errEmptyLeaves = merkleError("merkle: cannot build a tree from zero leaves")
