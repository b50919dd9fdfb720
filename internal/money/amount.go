// Package money implements the engine's fixed-scale monetary value, grounded
// on ibrahimkeyboad-gopay's Money type (int64 minor units) and enriched with
// github.com/shopspring/decimal for parsing/formatting at the edges, per
// ravivats-go-api-example's argument against float64 for balances.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MarshalJSON renders the amount as a quoted fixed-scale decimal string, so
// idempotency-replayed response bodies and API payloads never carry a raw
// integer cents value that a client might misinterpret as dollars.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a quoted fixed-scale decimal string back into cents.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDecimalString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Amount is a fixed-point signed integer of cents. Arithmetic is exact;
// float64 never appears in monetary calculations (spec §4.B).
type Amount int64

// Zero is the additive identity.
const Zero Amount = 0

// MaxAmount is the upper bound on any single operation, per spec §4.C.
const MaxAmount Amount = 1_000_000_000_00

// FromDecimal converts a shopspring/decimal value (e.g. parsed from a CSV
// cell or a benchmark/seeder flag) into Amount cents, rejecting any value
// that does not round-trip at 2 decimal places.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("sub-cent precision: %s", d.String())
	}
	return Amount(cents.IntPart()), nil
}

// ParseDecimalString parses a caller-supplied decimal string (e.g. "100.00")
// into Amount cents.
func ParseDecimalString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// Decimal renders the amount back as a shopspring/decimal value with scale 2.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders the amount as a fixed-scale decimal string, e.g. "100.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }
func (a Amount) Neg() Amount         { return -a }

func (a Amount) IsPositive() bool    { return a > 0 }
func (a Amount) IsNonNegative() bool { return a >= 0 }

func (a Amount) LessThan(b Amount) bool { return a < b }
func (a Amount) GTE(b Amount) bool      { return a >= b }
