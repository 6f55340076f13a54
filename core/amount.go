package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the native currency: one
// display unit equals 10^18 base units.
const Decimals = 18

// ParseAmount converts a display-unit decimal string ("1.5") into base units
// (1500000000000000000). The conversion is exact decimal arithmetic; amounts
// with more than Decimals fractional digits are rejected rather than rounded.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse amount %q: amount must not be negative", s)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("parse amount %q: more than %d fractional digits", s, Decimals)
	}
	return shifted.BigInt(), nil
}

// FormatAmount renders base units back into a display-unit decimal string.
// It is the exact inverse of ParseAmount.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}
