package merkle

import "github.com/padlocklabs/padlockd/foundation/blockchain/bhash"

// step is one recorded level of a Proof: the (left, right) pair whose hash
// equals the next step's left hash, all the way up to the root. A nil
// Right means the node was promoted verbatim rather than paired.
type step struct {
	Left  Hash
	Right *Hash
}

// combinedHash mirrors a layer's odd-node promotion rule: if there's no
// right sibling, the step's hash is simply Left; otherwise it's
// MerkleHash(Left‖Right).
func (s step) combinedHash() Hash {
	if s.Right == nil {
		return s.Left
	}
	combined := append(append([]byte{}, s.Left[:]...), s.Right[:]...)
	return bhash.MerkleHash(combined)
}

// Proof is the ordered sequence of (left, right?) pairs from a leaf's layer
// up to the layer just below the root.
type Proof struct {
	steps []step
}

// Proof builds the inclusion proof for the leaf whose hash is leafHash. It
// returns an error if no node in the tree's leaf layer carries that hash.
func (t *Tree) Proof(leafHash Hash) (*Proof, error) {
	if len(t.layers) == 1 {
		// Degenerate single-leaf tree: the root layer IS the leaf layer, so
		// the proof is just the leaf hash carried as a promoted node.
		if t.layers[0][0].hash != leafHash {
			return nil, errLeafNotFound
		}
		return &Proof{steps: []step{{Left: leafHash}}}, nil
	}

	var steps []step
	current := leafHash

	for layerIdx := 0; layerIdx < len(t.layers)-1; layerIdx++ {
		st, next, err := stepFromHash(current, layerIdx, t)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
		current = next
	}

	return &Proof{steps: steps}, nil
}

// stepFromHash finds the node in t.layers[layerIdx] carrying hash, looks up
// its parent in the next layer, and returns the (left, right?) pair of that
// parent along with the hash the next iteration should search for.
func stepFromHash(hash Hash, layerIdx int, t *Tree) (step, Hash, error) {
	cur := t.layers[layerIdx]

	var found *node
	for i := range cur {
		if cur[i].hash == hash {
			found = &cur[i]
			break
		}
	}
	if found == nil || found.parentIndex == nil {
		return step{}, Hash{}, errLeafNotFound
	}

	parent := t.layers[layerIdx+1][*found.parentIndex]

	st := step{Left: cur[parent.leftChildIndex].hash}
	if parent.rightChildIndex != nil {
		r := cur[*parent.rightChildIndex].hash
		st.Right = &r
	}

	return st, st.combinedHash(), nil
}

// Verify recomputes the proof upward and reports whether it resolves to
// root. At step i, the combined hash of steps[i] must equal steps[i+1]'s
// Left; the final step's combined hash must equal root.
func (p *Proof) Verify(root Hash) bool {
	n := len(p.steps)
	if n == 0 {
		return false
	}

	for i := 0; i < n-1; i++ {
		if p.steps[i+1].Left != p.steps[i].combinedHash() {
			return false
		}
	}

	return p.steps[n-1].combinedHash() == root
}

type merkleProofError string

func (e merkleProofError) Error() string { return string(e) }

const errLeafNotFound = merkleProofError("merkle: leaf hash not found in tree")
