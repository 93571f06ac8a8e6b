package numbers

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow  = errors.New("overflow")
	ErrDivByZero = errors.New("division by zero")
)

var (
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	minInt64   = big.NewInt(math.MinInt64)
	maxInt64   = big.NewInt(math.MaxInt64)
	maxUint64  = new(big.Int).SetUint64(math.MaxUint64)
)

func FitsInt128(v *big.Int) bool {
	return v != nil && v.Cmp(minInt128) >= 0 && v.Cmp(maxInt128) <= 0
}

func FitsUint128(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint128) <= 0
}

// CheckedSubInt128 returns a - b, failing when the result does not fit in a signed 128 bit integer.
func CheckedSubInt128(a, b *big.Int) (*big.Int, error) {
	if !FitsInt128(a) || !FitsInt128(b) {
		return nil, ErrOverflow
	}
	res := new(big.Int).Sub(a, b)
	if !FitsInt128(res) {
		return nil, ErrOverflow
	}
	return res, nil
}

// CheckedSubUint128 returns a - b, failing on underflow or when an operand is not a uint128.
func CheckedSubUint128(a, b *big.Int) (*big.Int, error) {
	if !FitsUint128(a) || !FitsUint128(b) {
		return nil, ErrOverflow
	}
	res := new(big.Int).Sub(a, b)
	if !FitsUint128(res) {
		return nil, ErrOverflow
	}
	return res, nil
}

func CheckedSubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// SaturatingSubUint64 returns a - b, or zero when b > a.
func SaturatingSubUint64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// QuoToInt64 divides (truncating toward zero) and narrows the quotient to int64.
func QuoToInt64(num *big.Int, den uint64) (int64, error) {
	if den == 0 {
		return 0, ErrDivByZero
	}
	q := new(big.Int).Quo(num, new(big.Int).SetUint64(den))
	if q.Cmp(minInt64) < 0 || q.Cmp(maxInt64) > 0 {
		return 0, ErrOverflow
	}
	return q.Int64(), nil
}

// QuoToUint64 divides and narrows the quotient to uint64.
func QuoToUint64(num *big.Int, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivByZero
	}
	if num.Sign() < 0 {
		return 0, ErrOverflow
	}
	q := new(big.Int).Quo(num, new(big.Int).SetUint64(den))
	if q.Cmp(maxUint64) > 0 {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// Ratio returns num/den as a decimal.
func Ratio(num, den uint64) (decimal.Decimal, error) {
	if den == 0 {
		return decimal.Zero, ErrDivByZero
	}
	n := decimal.NewFromBigInt(new(big.Int).SetUint64(num), 0)
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(den), 0)
	return n.Div(d), nil
}
