package wal

import "github.com/shopspring/decimal"

// Money is a fixed-point monetary amount (price, credit, order total).
// Physical quantities (stock count, order line quantity) are plain int64
// and do not use this type.
type Money struct {
	decimal.Decimal
}

// NewMoney builds a Money from an integer number of cents-equivalent units.
func NewMoney(units int64) Money {
	return Money{decimal.NewFromInt(units)}
}

// ParseMoney parses a plain decimal string ("12.50"), as stored in SQLite
// text columns — distinct from UnmarshalJSON, which expects a JSON value.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// ZeroMoney is the additive identity.
var ZeroMoney = NewMoney(0)

// Add returns m+other, saturating is not needed for addition of non-negative
// amounts but the result still round-trips through decimal.Decimal exactly.
func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

// Sub returns m-other.
func (m Money) Sub(other Money) Money {
	return Money{m.Decimal.Sub(other.Decimal)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{m.Decimal.Neg()}
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.Decimal.IsNegative()
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.Decimal.LessThan(other.Decimal)
}

// MulInt64 scales m by a plain integer quantity (an order line's count).
func (m Money) MulInt64(n int64) Money {
	return Money{m.Decimal.Mul(decimal.NewFromInt(n))}
}

// MarshalJSON renders Money as a plain decimal string, matching the
// teacher's Amount convention of never emitting binary-float JSON for money.
func (m Money) MarshalJSON() ([]byte, error) {
	return m.Decimal.MarshalJSON()
}

// UnmarshalJSON parses Money from a decimal string or JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}
