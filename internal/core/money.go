// Package core provides the domain model: entities, the closed category set,
// money handling and the budget aggregation.
//
// This file contains the Money type. Amounts are exact decimals so that sums
// over many expenses reconcile to the cent.
package core

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidIncome = errors.New("invalid income")
)

// Money is an exact decimal amount with two fractional digits of display precision.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromInt builds a whole-unit amount.
func MoneyFromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// ParseMoney parses a decimal string, accepting either a dot (12.34) or a
// comma (12,34) separator. The value is rounded half-up to cents.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,345") -> 12.35
//	ParseMoney("-1")     -> -1 (sign checks belong to Validate)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if !plainDecimal(s) {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{d: d.Round(2)}, nil
}

// Digit limits for ParseMoney input.
const (
	maxIntDigits  = 15
	maxFracDigits = 15
)

// plainDecimal accepts an optional leading minus, digits and at most one dot.
// Exponents and signs elsewhere are rejected before decimal sees them.
func plainDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return false
	}
	if len(intPart) > maxIntDigits || len(fracPart) > maxFracDigits {
		return false
	}
	return digitsOnly(intPart) && digitsOnly(fracPart)
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAmount parses a strictly positive expense amount.
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Zero, err
	}
	if err := m.Validate(); err != nil {
		return Zero, err
	}
	return m, nil
}

// ParseIncome parses a non-negative income.
func ParseIncome(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Zero, ErrInvalidIncome
	}
	if err := m.ValidateIncome(); err != nil {
		return Zero, err
	}
	return m, nil
}

// Validate reports whether m is usable as an expense amount.
func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateIncome reports whether m is usable as an income.
func (m Money) ValidateIncome() error {
	if m.d.IsNegative() {
		return ErrInvalidIncome
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp compares m and o like decimal.Cmp.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal compares numerically, so 1.5 equals 1.50.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Float64 is for display ratios only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON encodes the amount as a fixed two-digit string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts a JSON string or number under the ParseMoney rules.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	parsed, err := ParseMoney(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(2), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	return m.d.Scan(src)
}

// Percent returns part/whole*100. ok is false when whole is zero.
func Percent(part, whole Money) (float64, bool) {
	if whole.d.IsZero() {
		return 0, false
	}
	f, _ := part.d.Div(whole.d).Mul(decimal.NewFromInt(100)).Float64()
	return f, true
}
