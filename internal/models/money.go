package models

import (
	"github.com/shopspring/decimal"
)

// Money keeps full precision in memory and is rounded to two places only when serialized.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

func (m Money) String() string {
	return m.StringFixed(2)
}
