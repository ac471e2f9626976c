// Package money represents currency amounts as integer minor units (cents).
// Decimal parsing and rounding happen here, at the input boundary; the rest of
// the codebase compares amounts as integers.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency amount in minor units. 1598 means 15.98.
type Amount int64

// Parse converts a decimal string such as "15.98" into an Amount. Fractions
// beyond two decimal places are rejected rather than rounded, so a caller
// typo never silently changes a split.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	return Amount(cents.IntPart()), nil
}

// FromFloat converts a float amount into cents, rounding half away from zero.
// This is the tolerance boundary for values arriving as JSON numbers.
func FromFloat(f float64) Amount {
	return Amount(decimal.NewFromFloat(f).Round(2).Shift(2).IntPart())
}

// Float64 returns the amount in major units for JSON serialization.
func (a Amount) Float64() float64 {
	f, _ := decimal.New(int64(a), -2).Float64()
	return f
}

func (a Amount) String() string {
	return decimal.New(int64(a), -2).StringFixed(2)
}

// MarshalJSON emits the amount as a plain JSON number with two decimal
// places, matching the shape of the persisted documents.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.New(int64(a), -2).StringFixed(2)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string and
// rounds it to cents.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*a = Amount(d.Round(2).Shift(2).IntPart())
	return nil
}

// Sum adds a list of amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// SplitEven divides total into n parts that sum exactly to total. The
// remainder cents are distributed one each to the first parts, so
// SplitEven(1000, 3) yields 334, 333, 333.
func SplitEven(total Amount, n int) []Amount {
	if n <= 0 {
		return nil
	}
	base := total / Amount(n)
	remainder := total - base*Amount(n)
	parts := make([]Amount, n)
	for i := range parts {
		parts[i] = base
		if Amount(i) < remainder {
			parts[i]++
		}
	}
	return parts
}

// Abs returns the absolute value of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}
