package numbers

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Numbers(t *testing.T) {
	t.Run("Checked int128 subtraction can produce negative numbers", func(t *testing.T) {
		res, err := CheckedSubInt128(big.NewInt(10), big.NewInt(20))
		assert.Nil(t, err)
		assert.Equal(t, "-10", res.String())
	})
	t.Run("Checked int128 subtraction overflows", func(t *testing.T) {
		_, err := CheckedSubInt128(new(big.Int).Set(minInt128), big.NewInt(1))
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = CheckedSubInt128(new(big.Int).Set(maxInt128), big.NewInt(-1))
		assert.ErrorIs(t, err, ErrOverflow)
	})
	t.Run("Checked uint128 subtraction underflows", func(t *testing.T) {
		_, err := CheckedSubUint128(big.NewInt(1), big.NewInt(2))
		assert.ErrorIs(t, err, ErrOverflow)

		res, err := CheckedSubUint128(new(big.Int).Set(maxUint128), big.NewInt(1))
		assert.Nil(t, err)
		assert.Equal(t, "340282366920938463463374607431768211454", res.String())
	})
	t.Run("Checked uint64 subtraction", func(t *testing.T) {
		_, err := CheckedSubUint64(1, 2)
		assert.ErrorIs(t, err, ErrOverflow)

		v, err := CheckedSubUint64(1100, 1000)
		assert.Nil(t, err)
		assert.Equal(t, uint64(100), v)
	})
	t.Run("Saturating subtraction never goes below zero", func(t *testing.T) {
		assert.Equal(t, uint64(0), SaturatingSubUint64(5, 10))
		assert.Equal(t, uint64(5), SaturatingSubUint64(10, 5))
	})
	t.Run("Division happens before narrowing", func(t *testing.T) {
		// 2^70 does not fit in an int64 but 2^70 / 2^10 does.
		num := new(big.Int).Lsh(big.NewInt(1), 70)
		v, err := QuoToInt64(num, 1<<10)
		assert.Nil(t, err)
		assert.Equal(t, int64(1<<60), v)

		_, err = QuoToInt64(num, 1)
		assert.ErrorIs(t, err, ErrOverflow)
	})
	t.Run("Signed division truncates toward zero", func(t *testing.T) {
		v, err := QuoToInt64(big.NewInt(-7), 2)
		assert.Nil(t, err)
		assert.Equal(t, int64(-3), v)
	})
	t.Run("Unsigned narrowing", func(t *testing.T) {
		num := new(big.Int).Add(new(big.Int).SetUint64(math.MaxUint64), big.NewInt(1))
		_, err := QuoToUint64(num, 1)
		assert.ErrorIs(t, err, ErrOverflow)

		v, err := QuoToUint64(big.NewInt(100), 100)
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), v)

		_, err = QuoToUint64(big.NewInt(100), 0)
		assert.ErrorIs(t, err, ErrDivByZero)
	})
	t.Run("Ratio is exact", func(t *testing.T) {
		r, err := Ratio(50, 100)
		assert.Nil(t, err)
		assert.Equal(t, "0.5", r.String())

		_, err = Ratio(1, 0)
		assert.ErrorIs(t, err, ErrDivByZero)
	})
}
