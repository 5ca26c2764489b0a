package pricing

import (
	"b2bcart/internal/models"

	"github.com/shopspring/decimal"
)

// Aggregator builds the cart document returned to clients.
type Aggregator struct {
	taxRate decimal.Decimal
}

func NewAggregator(taxRate decimal.Decimal) *Aggregator {
	return &Aggregator{taxRate: taxRate}
}

// Build keeps the order of lines as given.
func (a *Aggregator) Build(lines []models.CartLineDetails) models.CartResponse {
	items := make([]models.CartItemResponse, 0, len(lines))
	totalQuantity := 0

	for _, l := range lines {
		items = append(items, models.CartItemResponse{
			Id:        l.Line.Id,
			ProductId: l.Line.ProductId,
			Product:   l.Product,
			Quantity:  l.Line.Quantity,
			UnitPrice: l.Product.Price,
			LineTotal: models.NewMoney(LineTotal(l.Product.Price.Decimal, l.Line.Quantity)),
			UpdatedAt: l.Line.UpdatedAt,
		})
		totalQuantity += l.Line.Quantity
	}

	totals := Compute(lines, a.taxRate)

	return models.CartResponse{
		Items:         items,
		Subtotal:      models.NewMoney(totals.Subtotal),
		Tax:           models.NewMoney(totals.Tax),
		Total:         models.NewMoney(totals.Total),
		TaxRate:       a.taxRate,
		ItemCount:     len(lines),
		TotalQuantity: totalQuantity,
	}
}
