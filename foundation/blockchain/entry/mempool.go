package entry

// MempoolEntry pairs an Entry with its detached single-signer signature.
// Signatures aren't aggregated until the entry is folded into a block; until
// then it travels through the mempool as a MempoolEntry.
type MempoolEntry struct {
	Entry     Entry
	Signature []byte
}

// NewMempoolEntry constructs a MempoolEntry ready for block assembly.
func NewMempoolEntry(e Entry, signature []byte) MempoolEntry {
	return MempoolEntry{Entry: e, Signature: signature}
}
