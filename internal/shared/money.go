package shared

import (
	"github.com/shopspring/decimal"
)

// StandardWorkHours is the divisor for overtime rate derivation.
const StandardWorkHours = 8

// Money2 rounds a monetary amount to 2 decimal places.
func Money2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// GST computes a GST amount from a base amount and a flat percentage rate,
// rounded to 2 decimals so cents are never silently truncated.
func GST(base decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return Money2(base.Mul(rate).Div(decimal.NewFromInt(100)))
}

// GSTTotal returns base + GST(base, rate).
func GSTTotal(base decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return base.Add(GST(base, rate))
}

// Percent returns round(part/whole × 100) as an int, 0 when whole is zero.
func Percent(part, whole decimal.Decimal) int {
	if whole.IsZero() {
		return 0
	}
	return int(part.Div(whole).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
