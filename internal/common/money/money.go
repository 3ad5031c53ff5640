package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds half away from zero to cents. Non-finite values pass through.
func Round(amount float64) float64 {
	return round(amount, 2)
}

// RoundPct keeps four decimals, enough for rates expressed in percent.
func RoundPct(pct float64) float64 {
	return round(pct, 4)
}

func String(amount float64) string {
	if !finite(amount) {
		return "NaN"
	}
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func round(v float64, places int32) float64 {
	if !finite(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
