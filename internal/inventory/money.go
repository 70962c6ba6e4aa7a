package inventory

import (
	"math"

	"github.com/shopspring/decimal"
)

// priceEpsilon is the smallest unit price difference treated as a real change.
const priceEpsilon = 0.001

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func lineTotal(qty, price float64) float64 {
	if !finite(qty) || !finite(price) {
		return 0
	}
	return decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)).Round(2).InexactFloat64()
}

func addQuantity(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

// effectiveUnitPrice falls back to lineTotal/quantity when the unit price was not captured.
// The fallback is a heuristic: OCR totals may include discounts or tax.
func effectiveUnitPrice(p Product) float64 {
	if p.UnitPrice != 0 || p.Quantity == 0 || p.LineTotal == 0 {
		return p.UnitPrice
	}
	if !finite(p.Quantity) || !finite(p.LineTotal) {
		return p.UnitPrice
	}
	return decimal.NewFromFloat(p.LineTotal).Div(decimal.NewFromFloat(p.Quantity)).Round(2).InexactFloat64()
}
