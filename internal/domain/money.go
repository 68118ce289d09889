package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidMoneyFormat is returned when a money value cannot be parsed
// from its string representation.
var ErrInvalidMoneyFormat = &Error{Code: EINVALID, Message: "Invalid money format"}

// Money is a fixed-precision amount in GTQ (or USD) with two fraction
// digits. Every operation returns a new value rounded half-up to two
// decimal places; amounts are never backed by a binary float.
//
// The zero value is Q0.00 and ready to use.
type Money struct {
	amount decimal.Decimal
}

// moneyPlaces is the number of fraction digits kept after every operation.
const moneyPlaces = 2

// NewMoneyFromString parses a decimal string such as "500.00" or "-12.5".
// Fails with ErrInvalidMoneyFormat on malformed input.
func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &Error{
			Code:    EINVALID,
			Message: fmt.Sprintf("Invalid money format: %q", s),
			Err:     ErrInvalidMoneyFormat,
		}
	}
	return Money{amount: d.Round(moneyPlaces)}, nil
}

// NewMoneyFromCents constructs a Money from an integer number of cents.
func NewMoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -moneyPlaces)}
}

// MustMoney parses a decimal string and panics on malformed input.
// Intended for constants and tests only.
func MustMoney(s string) Money {
	m, err := NewMoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount).Round(moneyPlaces)}
}

// Subtract returns m - other, clamped at zero. A discount can never make
// a price negative; use Compare for signed comparisons instead.
func (m Money) Subtract(other Money) Money {
	r := m.amount.Sub(other.amount)
	if r.IsNegative() {
		return Money{}
	}
	return Money{amount: r.Round(moneyPlaces)}
}

// Multiply returns m * n for an integer quantity.
func (m Money) Multiply(n int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n))).Round(moneyPlaces)}
}

// PercentageOf returns pct percent of m, rounded half-up.
// PercentageOf(20) of Q2500.00 is Q500.00.
func (m Money) PercentageOf(pct decimal.Decimal) Money {
	r := m.amount.Mul(pct).Div(decimal.NewFromInt(100))
	return Money{amount: r.Round(moneyPlaces)}
}

// Compare returns -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Compare(other Money) int {
	return m.amount.Cmp(other.amount)
}

// Equal reports whether both amounts are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative reports whether the amount is below zero. Only signed deltas
// produced by Scan can be negative; arithmetic results never are.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Cents returns the amount as an integer number of cents. Used for
// gateways that charge in minor units.
func (m Money) Cents() int64 {
	return m.amount.Shift(moneyPlaces).IntPart()
}

// String renders the amount with exactly two fraction digits ("500.00").
// This is also the wire format for Money across the API boundary.
func (m Money) String() string {
	return m.amount.StringFixed(moneyPlaces)
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// MarshalJSON serializes the amount as a decimal string to avoid float
// round-trip loss across the API boundary.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidMoneyFormat
	}
	parsed, err := NewMoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as NUMERIC(12,2).
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.amount = d.Round(moneyPlaces)
	return nil
}
