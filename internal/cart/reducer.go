// Package cart holds the shopping cart: an ordered list of line items keyed
// by product ID, a pure reducer over it, and a store that persists the list
// after every committed change.
package cart

import (
	"errors"
	"fmt"
	"math"

	"storefront/internal/models"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrNotFound        = errors.New("cart: item not found")
	ErrInvalidProduct  = errors.New("cart: product needs an id and a non-negative price")
)

// Action is one of AddItem, RemoveItem, UpdateQuantity, Clear or Load.
type Action interface {
	isAction()
}

type AddItem struct {
	Product  models.Product
	Quantity int
}

type RemoveItem struct {
	ProductID string
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line. With Strict set, a missing product yields ErrNotFound instead of
// a no-op.
type UpdateQuantity struct {
	ProductID string
	Quantity  int
	Strict    bool
}

type Clear struct{}

// Load replaces the whole list, e.g. when restoring from storage.
type Load struct {
	Items []models.LineItem
}

func (AddItem) isAction()        {}
func (RemoveItem) isAction()     {}
func (UpdateQuantity) isAction() {}
func (Clear) isAction()          {}
func (Load) isAction()           {}

// Reduce returns the list that results from applying action to items. The
// input slice is never modified. On error the caller keeps its old list.
func Reduce(items []models.LineItem, action Action) ([]models.LineItem, error) {
	switch a := action.(type) {
	case AddItem:
		if a.Quantity <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, a.Quantity)
		}
		if a.Product.ID == "" || a.Product.Price.IsNegative() {
			return nil, ErrInvalidProduct
		}
		next := clone(items)
		if i := indexOf(next, a.Product.ID); i >= 0 {
			if next[i].Quantity > math.MaxInt-a.Quantity {
				return nil, fmt.Errorf("%w: %d more of %s overflows", ErrInvalidQuantity, a.Quantity, a.Product.ID)
			}
			next[i].Quantity += a.Quantity
			return next, nil
		}
		return append(next, models.LineItem{
			ProductID: a.Product.ID,
			Name:      a.Product.Name,
			Price:     a.Product.Price,
			Quantity:  a.Quantity,
		}), nil

	case RemoveItem:
		i := indexOf(items, a.ProductID)
		if i < 0 {
			return clone(items), nil
		}
		next := make([]models.LineItem, 0, len(items)-1)
		next = append(next, items[:i]...)
		return append(next, items[i+1:]...), nil

	case UpdateQuantity:
		i := indexOf(items, a.ProductID)
		if i < 0 {
			if a.Strict {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, a.ProductID)
			}
			return clone(items), nil
		}
		if a.Quantity <= 0 {
			return Reduce(items, RemoveItem{ProductID: a.ProductID})
		}
		next := clone(items)
		next[i].Quantity = a.Quantity
		return next, nil

	case Clear:
		return []models.LineItem{}, nil

	case Load:
		return Normalize(a.Items), nil

	default:
		return nil, fmt.Errorf("cart: unknown action %T", action)
	}
}

// Normalize restores the list invariants on externally supplied items:
// lines without a product ID, with a non-positive quantity or a negative
// price are dropped, and duplicate product IDs are merged into the first
// occurrence. A merged quantity saturates at math.MaxInt.
func Normalize(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Price.IsNegative() {
			continue
		}
		if i := indexOf(out, item.ProductID); i >= 0 {
			if out[i].Quantity > math.MaxInt-item.Quantity {
				out[i].Quantity = math.MaxInt
			} else {
				out[i].Quantity += item.Quantity
			}
			continue
		}
		out = append(out, item)
	}
	return out
}

func indexOf(items []models.LineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func clone(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, len(items))
	copy(out, items)
	return out
}
