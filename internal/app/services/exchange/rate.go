// Package exchange converts between whole credits and ledger smallest
// units. The reserve currency is accounted in the same unit scale, so one
// credit unit redeems for exactly one reserve unit.
package exchange

import (
	"math/big"

	"github.com/blef1o/tunebank/internal/app/domain/money"
)

// UnitsPerCredit is the scaling factor between whole credits and smallest
// units (18 decimals).
var UnitsPerCredit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ToUnits converts whole credits to smallest units. The multiplication is
// overflow-checked; quantities large enough to leave the 256-bit range are
// rejected rather than truncated.
func ToUnits(credits *big.Int) (*big.Int, error) {
	if !money.IsValid(credits) {
		return nil, money.ErrNegative
	}
	return money.Mul(credits, UnitsPerCredit)
}

// ToReserveUnits returns the reserve owed for a credit quantity expressed
// in whole credits. The rate is fixed 1:1 at unit scale.
func ToReserveUnits(credits *big.Int) (*big.Int, error) {
	return ToUnits(credits)
}
