package exchange

import (
	"errors"
	"math/big"
	"testing"

	"github.com/blef1o/tunebank/internal/app/domain/money"
)

func TestToUnits(t *testing.T) {
	units, err := ToUnits(big.NewInt(3))
	if err != nil {
		t.Fatalf("to units: %v", err)
	}
	expected, _ := new(big.Int).SetString("3000000000000000000", 10)
	if units.Cmp(expected) != 0 {
		t.Fatalf("unexpected units: %v", units)
	}

	zero, err := ToUnits(big.NewInt(0))
	if err != nil {
		t.Fatalf("zero credits: %v", err)
	}
	if zero.Sign() != 0 {
		t.Fatalf("expected zero units, got %v", zero)
	}
}

func TestToUnitsOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 250)
	if _, err := ToUnits(huge); !errors.Is(err, money.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := ToUnits(big.NewInt(-1)); err == nil {
		t.Fatal("expected rejection of negative quantity")
	}
}

func TestReserveParity(t *testing.T) {
	credits := big.NewInt(42)
	units, err := ToUnits(credits)
	if err != nil {
		t.Fatalf("to units: %v", err)
	}
	reserve, err := ToReserveUnits(credits)
	if err != nil {
		t.Fatalf("to reserve: %v", err)
	}
	if units.Cmp(reserve) != 0 {
		t.Fatalf("credit/reserve parity broken: %v vs %v", units, reserve)
	}
}
