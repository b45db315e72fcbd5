package utils

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
	"github.com/vitwit/payments/types"
)

var hundred = decimal.NewFromInt(100)

// SaturatingAdd returns a+b, clamped at the maximum balance.
func SaturatingAdd(a, b types.Balance) types.Balance {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return types.Balance(math.MaxUint64)
	}
	return types.Balance(sum)
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b types.Balance) types.Balance {
	if b > a {
		return 0
	}
	return a - b
}

// CheckedAdd returns a+b or a BALANCE_OVERFLOW error.
func CheckedAdd(a, b types.Balance) (types.Balance, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, types.NewError(types.ErrBalanceOverflow, "%d + %d overflows balance", a, b)
	}
	return types.Balance(sum), nil
}

// PercentOf returns floor(amount * percent / 100). percent must lie in [0, 100].
func PercentOf(amount types.Balance, percent decimal.Decimal) (types.Balance, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return 0, types.NewError(types.ErrMathError, "percentage %s outside [0, 100]", percent)
	}
	whole := decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(amount)), 0)
	share := whole.Mul(percent).Div(hundred).Floor()
	return BalanceFromDecimal(share)
}

// BalanceFromDecimal converts a non-negative integral decimal to a balance.
func BalanceFromDecimal(d decimal.Decimal) (types.Balance, error) {
	if d.IsNegative() {
		return 0, types.NewError(types.ErrMathError, "negative balance %s", d)
	}
	n := d.Floor().BigInt()
	if !n.IsUint64() {
		return 0, types.NewError(types.ErrBalanceOverflow, "%s overflows balance", d)
	}
	return types.Balance(n.Uint64()), nil
}

// FormatBalance renders a balance as a base-10 string.
func FormatBalance(b types.Balance) string {
	return new(big.Int).SetUint64(uint64(b)).String()
}

// ParseBalance parses a base-10 balance string.
func ParseBalance(s string) (types.Balance, error) {
	d, err := ValidateAmount(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Floor()) {
		return 0, types.NewError(types.ErrInvalidAmount, "balance %s is not integral", s)
	}
	return BalanceFromDecimal(*d)
}
