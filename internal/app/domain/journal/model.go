package journal

import (
	"math/big"
	"time"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindBuy      Kind = "buy"
	KindRedeem   Kind = "redeem"
	KindListen   Kind = "listen"
	KindRating   Kind = "rating"
	KindWithdraw Kind = "withdraw"
)

// Entry is an immutable record of a completed economic operation. The
// journal is reporting-only; no invariant depends on it.
type Entry struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Account string `json:"account"`
	// SongSlot is the catalog slot touched by listen/rating entries, -1
	// otherwise. Slots are reused by compaction, so this is a point-in-time
	// reference, not a stable identity.
	SongSlot int    `json:"song_slot"`
	SongName string `json:"song_name,omitempty"`
	// Credits is the credit-unit amount moved, Reserve the reserve-unit
	// amount; either may be zero depending on the kind.
	Credits   *big.Int  `json:"credits"`
	Reserve   *big.Int  `json:"reserve"`
	CreatedAt time.Time `json:"created_at"`
}
