// Package ledger defines the external money collaborators the treasury
// depends on: the fungible credit ledger and the reserve vault. Both are
// treated as correct and atomic; tunebank only consumes their contracts.
// In-process implementations are provided for deployment without an
// external token backend and for tests.
package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/blef1o/tunebank/internal/app/domain/money"
)

var (
	// ErrInsufficientFunds is returned when a transfer or payout exceeds
	// the source balance. Callers must treat it as a failed transfer and
	// roll back their own state.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for nil or out-of-range amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Ledger is the fungible credit ledger contract. Amounts are in smallest
// units (1 credit = 10^18 units).
type Ledger interface {
	Transfer(from, to string, amount *big.Int) error
	BalanceOf(account string) *big.Int
	TotalSupply() *big.Int
}

// Reserve is the reserve-currency custody contract. Collect moves reserve
// from an account into system custody, Pay moves it back out. Both fail
// closed.
type Reserve interface {
	Collect(from string, amount *big.Int) error
	Pay(to string, amount *big.Int) error
	// Balance returns the reserve held in system custody.
	Balance() *big.Int
	// BalanceOf returns an account's external reserve balance.
	BalanceOf(account string) *big.Int
}

// TokenLedger is an in-process Ledger. The full supply is minted to a
// single account at construction.
type TokenLedger struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	supply   *big.Int
}

var _ Ledger = (*TokenLedger)(nil)

// NewTokenLedger mints the initial supply to the given account.
func NewTokenLedger(account string, supply *big.Int) (*TokenLedger, error) {
	if !money.IsValid(supply) {
		return nil, ErrInvalidAmount
	}
	l := &TokenLedger{
		balances: make(map[string]*big.Int),
		supply:   money.Clone(supply),
	}
	l.balances[account] = money.Clone(supply)
	return l, nil
}

// Transfer moves amount from one account to another.
func (l *TokenLedger) Transfer(from, to string, amount *big.Int) error {
	if !money.IsValid(amount) {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	source := l.balanceLocked(from)
	if source.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	l.balances[from] = new(big.Int).Sub(source, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)
	return nil
}

// BalanceOf returns the account balance in smallest units.
func (l *TokenLedger) BalanceOf(account string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return money.Clone(l.balanceLocked(account))
}

// TotalSupply returns the fixed total supply.
func (l *TokenLedger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return money.Clone(l.supply)
}

func (l *TokenLedger) balanceLocked(account string) *big.Int {
	if balance, ok := l.balances[account]; ok {
		return balance
	}
	return new(big.Int)
}
