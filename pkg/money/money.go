// Package money provides functionality for handling monetary values.
//
// It is a value object that represents a monetary value in a specific currency.
// Invariants:
//   - Amount is always stored in the smallest currency unit (e.g., cents for USD).
//   - Currency code must be valid ISO 4217 (3 uppercase letters).
//   - All arithmetic operations require matching currencies.
//   - No floating-point representation is used anywhere; decimal strings are
//     parsed exactly via shopspring/decimal.
package money

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned when performing operations
	// on money with different currencies.
	ErrCurrencyMismatch = fmt.Errorf("currency mismatch")

	// ErrInvalidCurrency is returned when a currency code or definition is invalid.
	ErrInvalidCurrency = fmt.Errorf("invalid currency code")

	// ErrInvalidAmount is returned when a decimal amount cannot be represented
	// exactly in the currency's smallest unit.
	ErrInvalidAmount = fmt.Errorf("invalid amount")

	// ErrOverflow is returned when an arithmetic result exceeds the int64 range.
	ErrOverflow = fmt.Errorf("amount overflows smallest-unit range")
)

// Money represents a monetary value in a specific currency.
// The zero value is 0 in an invalid (empty) currency; use the constructors.
type Money struct {
	amount   int64
	currency Currency
}

// New creates a Money value from an amount in the smallest currency unit.
func New(amount int64, code Code) (Money, error) {
	c := code.ToCurrency()
	if !c.IsValid() {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidCurrency, code)
	}
	return Money{amount: amount, currency: c}, nil
}

// Must creates a Money value from the smallest currency unit and panics on an
// invalid currency. Intended for tests and fixtures.
func Must(amount int64, code Code) Money {
	m, err := New(amount, code)
	if err != nil {
		panic(fmt.Sprintf("money.Must(%d, %v): %v", amount, code, err))
	}
	return m
}

// Zero creates a Money value of zero in the given currency.
func Zero(code Code) Money {
	return Money{amount: 0, currency: code.ToCurrency()}
}

// Parse creates a Money value from an exact decimal string (e.g., "12.34").
// Invariants enforced:
//   - Currency must be valid.
//   - The amount must not carry more decimal places than the currency allows.
//   - Conversion to the smallest unit is exact; nothing is rounded away.
func Parse(amount string, code Code) (Money, error) {
	c := code.ToCurrency()
	if !c.IsValid() {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidCurrency, code)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	scaled := d.Shift(int32(c.Decimals))
	if !scaled.IsInteger() {
		return Money{}, fmt.Errorf("%w: %q has more than %d decimal places",
			ErrInvalidAmount, amount, c.Decimals)
	}
	if !scaled.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return Money{amount: scaled.IntPart(), currency: c}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and fixtures.
func MustParse(amount string, code Code) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(fmt.Sprintf("money.MustParse(%q, %v): %v", amount, code, err))
	}
	return m
}

// Amount returns the amount in the smallest currency unit.
func (m Money) Amount() int64 {
	return m.amount
}

// Currency returns the currency of the Money value.
func (m Money) Currency() Currency {
	return m.currency
}

// CurrencyCode returns the currency code of the Money value.
func (m Money) CurrencyCode() Code {
	return m.currency.Code
}

// IsSameCurrency checks if both Money values share a currency.
func (m Money) IsSameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Add returns the sum of both amounts.
// Invariants enforced:
//   - Currencies must match.
//   - The result must not overflow int64.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s",
			ErrCurrencyMismatch, m.currency.Code, other.currency.Code)
	}
	sum := m.amount + other.amount
	if (other.amount > 0 && sum < m.amount) || (other.amount < 0 && sum > m.amount) {
		return Money{}, ErrOverflow
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Subtract returns the difference of both amounts. The result can be negative;
// it is used internally for delta computation.
// Invariants enforced:
//   - Currencies must match.
//   - The result must not overflow int64.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s",
			ErrCurrencyMismatch, m.currency.Code, other.currency.Code)
	}
	if other.amount == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	diff := m.amount - other.amount
	if (other.amount > 0 && diff > m.amount) || (other.amount < 0 && diff < m.amount) {
		return Money{}, ErrOverflow
	}
	return Money{amount: diff, currency: m.currency}, nil
}

// Negate returns the Money value with its sign flipped.
func (m Money) Negate() Money {
	return Money{amount: -m.amount, currency: m.currency}
}

// Abs returns the absolute value of the Money amount.
func (m Money) Abs() Money {
	if m.amount < 0 {
		return m.Negate()
	}
	return m
}

// Equals checks amount and currency equality.
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// GreaterThan compares amounts.
// Invariants enforced:
//   - Currencies must match.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("%w: %s and %s",
			ErrCurrencyMismatch, m.currency.Code, other.currency.Code)
	}
	return m.amount > other.amount, nil
}

// LessThan compares amounts.
// Invariants enforced:
//   - Currencies must match.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("%w: %s and %s",
			ErrCurrencyMismatch, m.currency.Code, other.currency.Code)
	}
	return m.amount < other.amount, nil
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.amount > 0
}

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool {
	return m.amount < 0
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount == 0
}

// Decimal returns the amount as an exact decimal in the main currency unit.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -int32(m.currency.Decimals))
}

// String returns a string representation such as "12.34 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(int32(m.currency.Decimals)), m.currency.Code)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}{Amount: m.amount, Currency: string(m.currency.Code)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := New(aux.Amount, Code(aux.Currency))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
