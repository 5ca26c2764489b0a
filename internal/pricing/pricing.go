// Package pricing turns cart lines and live product prices into totals.
// Arithmetic is exact. Rounding to two places happens once, when tax is
// externalized, never while summing lines.
package pricing

import (
	"b2bcart/internal/models"

	"github.com/shopspring/decimal"
)

const MoneyPlaces = 2

var DefaultTaxRate = decimal.RequireFromString("0.07")

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Subtotal(lines []models.CartLineDetails) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.Product.Price.Decimal, l.Line.Quantity))
	}

	return subtotal
}

// Tax is subtotal * rate rounded half away from zero to two places.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(MoneyPlaces)
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func Compute(lines []models.CartLineDetails, rate decimal.Decimal) Totals {
	subtotal := Subtotal(lines)
	tax := Tax(subtotal, rate)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
