package core

import "github.com/shopspring/decimal"

// Money amounts are decimal.Decimal throughout the engine so that folds over
// thousands of entries never drift.

// Sum adds amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// RequirePositive returns a ValidationError unless amount > 0.
func RequirePositive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Invalid(field, "must be greater than zero")
	}
	return nil
}

// MustDecimal parses s, returning zero on malformed input. For constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
