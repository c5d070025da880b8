// Package difficulty recomputes the chain's target difficulty and
// per-entry difficulty bounds from a sliding window of recent headers.
package difficulty

import "github.com/padlocklabs/padlockd/foundation/blockchain/database"

// Consensus constants.
const (
	BlockTimeSeconds         = 120
	PreviousBlocksToConsider = 750
	MedianTimestampOffset    = 11

	entryDifficultyMultiplierFactor = 0.05
	maxAllowedEntryDifficultyFactor = 1.5
)

// Result carries the recomputed chain-info fields. Callers apply it to
// their own ChainInfo value.
type Result struct {
	Difficulty                float32
	EntryDifficultyMultiplier float32
	MaxAllowedEntryDifficulty float32
}

// Recompute derives the next difficulty target and entry-difficulty bounds
// from headers, which must be ordered newest-to-oldest and already
// windowed to min(PreviousBlocksToConsider, height) by the caller (via
// Window). It returns ok=false when the window has fewer than 2 headers,
// signaling the caller to leave chain-info's difficulty fields unchanged.
func Recompute(headers []database.BlockHeader) (Result, bool) {
	n := len(headers)
	if n < 2 {
		return Result{}, false
	}

	var targetSum, entrySum float64
	for _, h := range headers {
		targetSum += float64(h.DifficultyTarget)
		entrySum += float64(h.EntryDifficulty)
	}
	avgTarget := targetSum / float64(n)
	avgEntry := entrySum / float64(n)

	var timeSum float64
	for i := 1; i < n; i++ {
		timeSum += float64(headers[i-1].Timestamp) - float64(headers[i].Timestamp)
	}
	avgBlockTime := timeSum / float64(n)

	hashRate := avgTarget / avgBlockTime
	newDifficulty := hashRate * BlockTimeSeconds

	return Result{
		Difficulty:                float32(newDifficulty),
		EntryDifficultyMultiplier: float32((avgTarget * entryDifficultyMultiplierFactor) / avgEntry),
		MaxAllowedEntryDifficulty: float32(avgEntry * maxAllowedEntryDifficultyFactor),
	}, true
}

// Window collects the n most recent headers ordered newest-to-oldest,
// starting at height and walking downward via headerAt. n is normally
// WindowSize(height); height must be >= n.
func Window(height uint64, n int, headerAt func(h uint64) (database.BlockHeader, bool, error)) ([]database.BlockHeader, error) {
	headers := make([]database.BlockHeader, 0, n)
	for i := 0; i < n; i++ {
		h, ok, err := headerAt(height - uint64(i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errHeaderMissing
		}
		headers = append(headers, h)
	}
	return headers, nil
}

type difficultyError string

func (e difficultyError) Error() string { return string(e) }

const errHeaderMissing = difficultyError("difficulty: expected header missing from window")

// WindowSize returns min(PreviousBlocksToConsider, height).
func WindowSize(height uint64) int {
	if height > PreviousBlocksToConsider {
		return PreviousBlocksToConsider
	}
	return int(height)
}

// MedianTimestampHeight returns the height whose header's timestamp feeds
// past_median_timestamp: max(1, height-11). Despite the field's name this
// is a fixed-offset read, not a true median; consensus depends on it
// staying that way.
func MedianTimestampHeight(height uint64) uint64 {
	if height <= MedianTimestampOffset {
		return 1
	}
	return height - MedianTimestampOffset
}
