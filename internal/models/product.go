package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is the catalog entry a line item is created from. The cart keeps
// only a weak reference to it through ProductID.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is Price × Quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// MarshalJSON writes price as a JSON number. Unmarshalling accepts
// numbers and strings.
func (l LineItem) MarshalJSON() ([]byte, error) {
	type plain LineItem
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{
		plain: plain(l),
		Price: json.Number(l.Price.String()),
	})
}
