package database

import "fmt"

// ChainErrorKind enumerates the ways a block can fail the acceptance
// pipeline or a lookup can fail to resolve, mirroring the block-level and
// store-level error taxonomy.
type ChainErrorKind int

const (
	KindOther ChainErrorKind = iota
	KindNoPublicKeyFound
	KindInvalidSignature
	KindTooManyCoinfileHashes
	KindPoWTooLong
	KindBlockDoesntExist
	KindBlockAlreadyExists
	KindSkippedBlock
	KindBlockNotAtTop
	KindBlockPreviousHashWrong
	KindBlockTargetDifficultyWrong
	KindBlockTimestampTooEarly
	KindBlockInFuture
	KindBlockNotEnoughWork
	KindBlockEntryDifficultyWrong
	KindBlockMaxAllowedEntryDifficultyWrong
	KindInvalidMerkleRoot
	KindBlockTooBig
	KindInvalidHash
	KindCantFindHashFromHeight
	KindBlockHeaderDoesntExist
)

func (k ChainErrorKind) String() string {
	switch k {
	case KindNoPublicKeyFound:
		return "no_public_key_found"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindTooManyCoinfileHashes:
		return "too_many_coinfile_hashes"
	case KindPoWTooLong:
		return "pow_too_long"
	case KindBlockDoesntExist:
		return "block_doesnt_exist"
	case KindBlockAlreadyExists:
		return "block_already_exists"
	case KindSkippedBlock:
		return "skipped_block"
	case KindBlockNotAtTop:
		return "block_not_at_top"
	case KindBlockPreviousHashWrong:
		return "block_previous_hash_wrong"
	case KindBlockTargetDifficultyWrong:
		return "block_target_difficulty_wrong"
	case KindBlockTimestampTooEarly:
		return "block_timestamp_too_early"
	case KindBlockInFuture:
		return "block_in_future"
	case KindBlockNotEnoughWork:
		return "block_not_enough_work"
	case KindBlockEntryDifficultyWrong:
		return "block_entry_difficulty_wrong"
	case KindBlockMaxAllowedEntryDifficultyWrong:
		return "block_max_allowed_entry_difficulty_wrong"
	case KindInvalidMerkleRoot:
		return "invalid_merkle_root"
	case KindBlockTooBig:
		return "block_too_big"
	case KindInvalidHash:
		return "invalid_hash"
	case KindCantFindHashFromHeight:
		return "cant_find_hash_from_height"
	case KindBlockHeaderDoesntExist:
		return "block_header_doesnt_exist"
	default:
		return "other"
	}
}

// ChainError is the two-layer error model used across block validation and
// store lookups: a stable Kind a caller can switch on, plus the underlying
// Cause (which may be nil for kinds that are self-explanatory).
type ChainError struct {
	Kind  ChainErrorKind
	Cause error
}

func (e *ChainError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ChainError) Unwrap() error { return e.Cause }

// NewChainError constructs a ChainError of the given kind, optionally
// wrapping cause.
func NewChainError(kind ChainErrorKind, cause error) *ChainError {
	return &ChainError{Kind: kind, Cause: cause}
}
