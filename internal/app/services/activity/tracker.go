// Package activity tracks per-account interaction state: write-once
// listen/rated flags per (slot, account) pair and per-account aggregate
// history.
package activity

import (
	"math/big"
	"sync"

	"github.com/blef1o/tunebank/internal/app/domain/listener"
	"github.com/blef1o/tunebank/internal/app/domain/money"
)

// Tracker owns listener profiles and idempotency flags.
//
// Flags key on the numeric catalog slot, mirroring the upstream storage
// layout: a song moved into a slot by compaction inherits whatever flags
// were already recorded against that slot. Flags are write-once and never
// reset.
type Tracker struct {
	mu       sync.RWMutex
	listened map[int]map[string]bool
	rated    map[int]map[string]bool
	profiles map[string]*listener.Profile
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		listened: make(map[int]map[string]bool),
		rated:    make(map[int]map[string]bool),
		profiles: make(map[string]*listener.Profile),
	}
}

// HasListened reports whether the account already triggered the slot's
// first-listen accounting.
func (t *Tracker) HasListened(slot int, account string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listened[slot][account]
}

// MarkListened sets the listen flag for the pair. Setting it twice is a
// no-op; the flag never resets.
func (t *Tracker) MarkListened(slot int, account string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listened[slot] == nil {
		t.listened[slot] = make(map[string]bool)
	}
	t.listened[slot][account] = true
}

// HasRated reports whether the account already rated the slot.
func (t *Tracker) HasRated(slot int, account string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rated[slot][account]
}

// MarkRated sets the rated flag for the pair.
func (t *Tracker) MarkRated(slot int, account string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rated[slot] == nil {
		t.rated[slot] = make(map[string]bool)
	}
	t.rated[slot][account] = true
}

// AppendHistory records a listen in the account's history. Every listen
// call appends, repeat listens included.
func (t *Tracker) AppendHistory(account, songName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	profile := t.profileLocked(account)
	profile.ListenHistory = append(profile.ListenHistory, songName)
}

// AddPurchased accumulates whole credits bought by the account. The total
// only ever grows; it exists for reporting.
func (t *Tracker) AddPurchased(account string, credits *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	profile := t.profileLocked(account)
	profile.CreditsPurchased = new(big.Int).Add(profile.CreditsPurchased, credits)
}

// History returns a copy of the account's listen history in order.
func (t *Tracker) History(account string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	profile, ok := t.profiles[account]
	if !ok {
		return nil
	}
	return append([]string(nil), profile.ListenHistory...)
}

// Profile returns a snapshot of the account's aggregate state. Accounts
// with no recorded interaction return an empty profile.
func (t *Tracker) Profile(account string) listener.Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()

	profile, ok := t.profiles[account]
	if !ok {
		return listener.Profile{Account: account, CreditsPurchased: money.Zero()}
	}
	return listener.Profile{
		Account:          account,
		CreditsPurchased: money.Clone(profile.CreditsPurchased),
		ListenHistory:    append([]string(nil), profile.ListenHistory...),
	}
}

func (t *Tracker) profileLocked(account string) *listener.Profile {
	profile, ok := t.profiles[account]
	if !ok {
		profile = &listener.Profile{Account: account, CreditsPurchased: money.Zero()}
		t.profiles[account] = profile
	}
	return profile
}
