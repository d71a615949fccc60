package cart

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

func TotalItemCount(items []models.LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func Subtotal(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}
