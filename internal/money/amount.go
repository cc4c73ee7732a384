// Package money holds the integer amount type shared by the ledger, the
// leaderboards and the prize pool.
package money

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow is returned when a checked operation leaves the
	// [0, 2^128-1] range or divides by zero.
	ErrOverflow = errors.New("overflow in calculation")
	// ErrInvalidAmount is returned when parsing a value that is not a
	// non-negative integer.
	ErrInvalidAmount = errors.New("invalid amount")
)

var maxValue = decimal.NewFromBigInt(
	new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)),
	0,
)

// Amount is a non-negative integer quantity of the wager denomination,
// bounded by 2^128-1. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// Max returns the largest representable amount.
func Max() Amount { return Amount{d: maxValue} }

// New returns v as an Amount.
func New(v uint64) Amount {
	return Amount{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

// Parse reads a base-10 integer string.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return fromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() || !d.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	if d.GreaterThan(maxValue) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: d}, nil
}

func bounded(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() || d.GreaterThan(maxValue) {
		return Amount{}, ErrOverflow
	}
	return Amount{d: d}, nil
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	return bounded(a.d.Add(b.d))
}

// Sub returns a-b or ErrOverflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	return bounded(a.d.Sub(b.d))
}

// SaturatingSub returns a-b, or zero when b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if b.d.GreaterThanOrEqual(a.d) {
		return Amount{}
	}
	return Amount{d: a.d.Sub(b.d)}
}

// MulRatio returns floor(a * num / den). The intermediate product is wide;
// only the quotient must fit. A zero denominator is an overflow.
func (a Amount) MulRatio(num, den uint64) (Amount, error) {
	if den == 0 {
		return Amount{}, ErrOverflow
	}
	q, _ := a.d.Mul(New(num).d).QuoRem(New(den).d, 0)
	return bounded(q)
}

func (a Amount) IsZero() bool { return a.d.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

func (a Amount) String() string { return a.d.String() }

// MarshalJSON encodes the amount as a quoted integer string so values above
// 2^53 survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts quoted or bare integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	parsed, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
