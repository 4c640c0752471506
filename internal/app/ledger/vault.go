package ledger

import (
	"math/big"
	"sync"

	"github.com/blef1o/tunebank/internal/app/domain/money"
)

// systemAccount is the internal key for reserve held in system custody.
const systemAccount = "__system__"

// Vault is an in-process Reserve. It tracks external account balances and
// the system's own custody in the same unit scale as the credit ledger.
type Vault struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
}

var _ Reserve = (*Vault)(nil)

// NewVault returns an empty vault.
func NewVault() *Vault {
	return &Vault{balances: make(map[string]*big.Int)}
}

// Fund credits an external account with reserve currency. It models the
// account acquiring reserve outside the system and exists so deployments
// and tests can seed balances.
func (v *Vault) Fund(account string, amount *big.Int) error {
	if !money.IsValid(amount) {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[account] = new(big.Int).Add(v.balanceLocked(account), amount)
	return nil
}

// Collect moves reserve from an account into system custody.
func (v *Vault) Collect(from string, amount *big.Int) error {
	return v.move(from, systemAccount, amount)
}

// Pay moves reserve from system custody out to an account.
func (v *Vault) Pay(to string, amount *big.Int) error {
	return v.move(systemAccount, to, amount)
}

// Balance returns the reserve held in system custody.
func (v *Vault) Balance() *big.Int {
	return v.BalanceOf(systemAccount)
}

// BalanceOf returns an account's reserve balance.
func (v *Vault) BalanceOf(account string) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return money.Clone(v.balanceLocked(account))
}

func (v *Vault) move(from, to string, amount *big.Int) error {
	if !money.IsValid(amount) {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	source := v.balanceLocked(from)
	if source.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	v.balances[from] = new(big.Int).Sub(source, amount)
	v.balances[to] = new(big.Int).Add(v.balanceLocked(to), amount)
	return nil
}

func (v *Vault) balanceLocked(account string) *big.Int {
	if balance, ok := v.balances[account]; ok {
		return balance
	}
	return new(big.Int)
}
