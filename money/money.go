package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// ErrCurrencyMismatch is returned when two amounts of different currencies
// are combined or compared.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrAmountOverflow is returned when a scaled result does not fit in an
// int64 minor-unit count.
var ErrAmountOverflow = errors.New("amount overflow")

// Money is an amount expressed as an integer count of minor currency units
// (e.g. paise for INR) plus an ISO currency code. Negative amounts are valid
// only for adjustment/reversal records; invoice totals and applications must
// stay non-negative and callers enforce that at their boundary.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New builds a Money value. The currency code is normalized to upper case.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Scale multiplies the amount by the rational num/den and rounds half-up to
// the nearest minor unit (halves of negative amounts round away from zero).
// This is the single rounding rule for discount and tax factors.
func (m Money) Scale(num, den int64) (Money, error) {
	if den <= 0 {
		return Money{}, fmt.Errorf("invalid scale denominator %d", den)
	}
	if mulOverflows(m.Amount, num) {
		return m.scaleBig(num, den)
	}
	p := m.Amount * num
	q := p / den
	r := p % den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if p < 0 {
			q--
		} else {
			q++
		}
	}
	return Money{Amount: q, Currency: m.Currency}, nil
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		return true
	}
	p := a * b
	return p/b != a
}

// scaleBig is the arbitrary-precision path for amount*num products that do
// not fit in int64. Same rounding rule as Scale; the final result must
// still fit in int64 minor units.
func (m Money) scaleBig(num, den int64) (Money, error) {
	p := new(big.Int).Mul(big.NewInt(m.Amount), big.NewInt(num))
	bigDen := big.NewInt(den)
	q, r := new(big.Int).QuoRem(p, bigDen, new(big.Int))
	r.Abs(r)
	if r.Lsh(r, 1).Cmp(bigDen) >= 0 {
		if p.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	if !q.IsInt64() {
		return Money{}, fmt.Errorf("%w: %s scaled by %d/%d", ErrAmountOverflow, m, num, den)
	}
	return Money{Amount: q.Int64(), Currency: m.Currency}, nil
}

// Cmp compares m against o: -1 if less, 0 if equal, +1 if greater.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	}
	return 0, nil
}

// Min returns the smaller of a and b.
func Min(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
