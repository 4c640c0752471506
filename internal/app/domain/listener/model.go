package listener

import "math/big"

// Profile aggregates per-account activity. Records are created lazily on
// first interaction and never removed.
type Profile struct {
	Account string `json:"account"`
	// CreditsPurchased is cumulative and never decreases, in whole credits.
	CreditsPurchased *big.Int `json:"credits_purchased"`
	// ListenHistory is append-only and keeps one entry per listen call,
	// duplicates included.
	ListenHistory []string `json:"listen_history"`
}
