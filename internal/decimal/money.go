package decimal

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for amounts
const MoneyPlaces = 2

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundMoney rounds half away from zero to 2 places.
// -0.005 rounds to -0.01 so an allowance mirrors the charge of the same amount.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// TaxOf computes round(amount * rate) where rate is a fraction (0.20 = 20%)
func TaxOf(amount, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return Zero
	}
	return RoundMoney(amount.Mul(rate))
}

// ToPercent converts a fraction rate into a percentage (0.2 -> 20)
func ToPercent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(hundred)
}

// Signed returns amount for charges and -amount for allowances
func Signed(amount decimal.Decimal, isCharge bool) decimal.Decimal {
	if isCharge {
		return amount
	}
	return amount.Neg()
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// FormatAmount renders an amount with exactly 2 fraction digits
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// FormatPercent renders a percentage with exactly 2 fraction digits
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// FormatPrice renders a unit price with at least 2 fraction digits and
// keeps any further precision
func FormatPrice(d decimal.Decimal) string {
	if d.Exponent() < -MoneyPlaces && !d.Equal(d.Round(MoneyPlaces)) {
		return d.String()
	}
	return d.StringFixed(MoneyPlaces)
}

// FormatQuantity renders a quantity without trailing zeros
func FormatQuantity(d decimal.Decimal) string {
	return d.String()
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}
