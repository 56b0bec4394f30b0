package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesCurrency(t *testing.T) {
	m := New(11800, " inr ")
	assert.Equal(t, int64(11800), m.Amount)
	assert.Equal(t, "INR", m.Currency)
}

func TestAddSub(t *testing.T) {
	a := New(10000, "INR")
	b := New(1800, "INR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(11800), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(8200), diff.Amount)
}

func TestCurrencyMismatch(t *testing.T) {
	a := New(100, "INR")
	b := New(100, "USD")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Cmp(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = Min(a, b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestScaleRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		num, den int64
		want     int64
	}{
		{"exact", 10000, 18, 100, 1800},
		{"half rounds up", 25, 1, 2, 13},      // 12.5 -> 13
		{"below half rounds down", 7, 1, 3, 2}, // 2.33 -> 2
		{"above half rounds up", 8, 1, 3, 3},   // 2.66 -> 3
		{"negative half away from zero", -25, 1, 2, -13},
		{"zero", 0, 18, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := New(tc.amount, "INR").Scale(tc.num, tc.den)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Amount)
			assert.Equal(t, "INR", got.Currency)
		})
	}
}

func TestScaleRejectsBadDenominator(t *testing.T) {
	_, err := New(100, "INR").Scale(1, 0)
	assert.Error(t, err)
	_, err = New(100, "INR").Scale(1, -2)
	assert.Error(t, err)
}

func TestCmpAndMin(t *testing.T) {
	a := New(100, "INR")
	b := New(200, "INR")

	c, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = b.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = a.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	m, err := Min(a, b)
	require.NoError(t, err)
	assert.Equal(t, a, m)
}

func TestZeroAndNegative(t *testing.T) {
	assert.True(t, New(0, "INR").IsZero())
	assert.True(t, New(-5, "INR").IsNegative())
	assert.False(t, New(5, "INR").IsNegative())
}

func TestScaleLargeAmounts(t *testing.T) {
	// amount * num exceeds int64 but the scaled result fits.
	huge := New(6_000_000_000_000_000_000, "INR")
	got, err := huge.Scale(1800, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_080_000_000_000_000_000), got.Amount)

	got, err = New(math.MaxInt64/2, "INR").Scale(3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/2), got.Amount)

	got, err = New(-6_000_000_000_000_000_000, "INR").Scale(1800, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(-1_080_000_000_000_000_000), got.Amount)
}

func TestScaleResultOverflow(t *testing.T) {
	_, err := New(math.MaxInt64, "INR").Scale(2, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = New(math.MinInt64, "INR").Scale(2, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}
