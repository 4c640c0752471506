// Package money provides checked arithmetic for ledger amounts.
//
// Amounts are non-negative big integers capped at 2^256-1, the word size
// the upstream token economy assumes. Every operation that could leave
// that range reports ErrOverflow instead of wrapping silently.
package money

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrOverflow is returned when a result exceeds the 256-bit cap.
	ErrOverflow = errors.New("amount overflows 256-bit range")
	// ErrNegative is returned when a result would drop below zero.
	ErrNegative = errors.New("amount would be negative")
)

// maxAmount is 2^256 - 1.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Zero returns a fresh zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// FromInt64 converts a non-negative int64 into an amount.
func FromInt64(v int64) (*big.Int, error) {
	if v < 0 {
		return nil, ErrNegative
	}
	return big.NewInt(v), nil
}

// Parse converts a base-10 string into an amount.
func Parse(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	if v.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return v, nil
}

// Clone returns an independent copy of the amount.
func Clone(a *big.Int) *big.Int {
	if a == nil {
		return Zero()
	}
	return new(big.Int).Set(a)
}

// Add returns a+b, rejecting results above the cap.
func Add(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, rejecting negative results.
func Sub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, ErrNegative
	}
	return new(big.Int).Sub(a, b), nil
}

// Mul returns a*b, rejecting results above the cap.
func Mul(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(a, b)
	if product.Cmp(maxAmount) > 0 {
		return nil, ErrOverflow
	}
	return product, nil
}

// IsValid reports whether the amount is inside the accepted range.
func IsValid(a *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(maxAmount) <= 0
}
