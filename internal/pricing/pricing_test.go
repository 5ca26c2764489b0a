package pricing_test

import (
	"b2bcart/internal/models"
	"b2bcart/internal/pricing"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(id string, price string, quantity int) models.CartLineDetails {
	return models.CartLineDetails{
		Line: models.CartLine{
			Id:        "line-" + id,
			UserId:    "u1",
			ProductId: id,
			Quantity:  quantity,
			UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Product: models.Product{
			Id:     id,
			Price:  models.NewMoney(d(price)),
			Images: []string{},
		},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name             string
		lines            []models.CartLineDetails
		rate             string
		expectedSubtotal string
		expectedTax      string
		expectedTotal    string
	}{
		{
			name:             "Empty cart",
			lines:            nil,
			rate:             "0.07",
			expectedSubtotal: "0",
			expectedTax:      "0",
			expectedTotal:    "0",
		},
		{
			name:             "Single line",
			lines:            []models.CartLineDetails{line("p1", "15000.00", 2)},
			rate:             "0.07",
			expectedSubtotal: "30000",
			expectedTax:      "2100",
			expectedTotal:    "32100",
		},
		{
			name: "Tax rounds half away from zero",
			lines: []models.CartLineDetails{
				line("p1", "100.00", 3),
				line("p2", "82.50", 1),
			},
			rate:             "0.07",
			expectedSubtotal: "382.5",
			expectedTax:      "26.78",
			expectedTotal:    "409.28",
		},
		{
			name: "Sub-cent prices are not rounded per line",
			lines: []models.CartLineDetails{
				line("p1", "0.333", 3),
				line("p2", "0.335", 1),
			},
			rate:             "0.07",
			expectedSubtotal: "1.334",
			expectedTax:      "0.09",
			expectedTotal:    "1.424",
		},
		{
			name:             "Zero rate",
			lines:            []models.CartLineDetails{line("p1", "10.10", 1)},
			rate:             "0",
			expectedSubtotal: "10.1",
			expectedTax:      "0",
			expectedTotal:    "10.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := pricing.Compute(tt.lines, d(tt.rate))

			assert.True(t, totals.Subtotal.Equal(d(tt.expectedSubtotal)), "subtotal %s", totals.Subtotal)
			assert.True(t, totals.Tax.Equal(d(tt.expectedTax)), "tax %s", totals.Tax)
			assert.True(t, totals.Total.Equal(d(tt.expectedTotal)), "total %s", totals.Total)
			assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax)))
		})
	}
}

func TestAggregator_Build(t *testing.T) {
	agg := pricing.NewAggregator(pricing.DefaultTaxRate)

	cart := agg.Build([]models.CartLineDetails{
		line("p2", "82.50", 1),
		line("p1", "100.00", 3),
	})

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "p2", cart.Items[0].ProductId)
	assert.Equal(t, "p1", cart.Items[1].ProductId)
	assert.True(t, cart.Items[1].LineTotal.Equal(d("300")))
	assert.True(t, cart.Items[1].UnitPrice.Equal(d("100")))
	assert.Equal(t, 2, cart.ItemCount)
	assert.Equal(t, 4, cart.TotalQuantity)
	assert.True(t, cart.TaxRate.Equal(d("0.07")))
	assert.True(t, cart.Total.Equal(d("409.28")))
}

func TestAggregator_BuildEmpty(t *testing.T) {
	cart := pricing.NewAggregator(pricing.DefaultTaxRate).Build(nil)

	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.ItemCount)
	assert.Zero(t, cart.TotalQuantity)
	assert.True(t, cart.Total.IsZero())
}

func TestCartResponse_JSON(t *testing.T) {
	cart := pricing.NewAggregator(pricing.DefaultTaxRate).Build([]models.CartLineDetails{
		line("p1", "15000", 2),
	})

	raw, err := json.Marshal(cart)
	require.NoError(t, err)

	var body struct {
		Items []struct {
			UnitPrice json.RawMessage `json:"unitPrice"`
			LineTotal json.RawMessage `json:"lineTotal"`
		} `json:"items"`
		Subtotal json.RawMessage `json:"subtotal"`
		Tax      json.RawMessage `json:"tax"`
		Total    json.RawMessage `json:"total"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	require.Len(t, body.Items, 1)
	assert.Equal(t, "15000.00", string(body.Items[0].UnitPrice))
	assert.Equal(t, "30000.00", string(body.Items[0].LineTotal))
	assert.Equal(t, "30000.00", string(body.Subtotal))
	assert.Equal(t, "2100.00", string(body.Tax))
	assert.Equal(t, "32100.00", string(body.Total))
}
