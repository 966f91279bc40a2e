package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is an owned good. Two items are equal when name and price match.
type Item struct {
	Name  string
	Price decimal.Decimal
}

// NewItem validates name and price.
func NewItem(name string, price decimal.Decimal) (Item, error) {
	if strings.TrimSpace(name) == "" {
		return Item{}, fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if price.IsNegative() {
		return Item{}, fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	if !amountInRange(price) {
		return Item{}, fmt.Errorf("%w: price %s is out of range", ErrInvalidItem, price)
	}
	return Item{Name: name, Price: price}, nil
}

// Equal compares by value; prices are compared numerically so 1.5 equals 1.50.
func (i Item) Equal(other Item) bool {
	return i.Name == other.Name && i.Price.Equal(other.Price)
}

func (i Item) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Price.StringFixed(2))
}
