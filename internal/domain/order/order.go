package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category routes a line item to a preparation station.
type Category string

const (
	CategoryUnspecified Category = ""
	CategoryFood        Category = "food"
	CategoryDrink       Category = "drink"
)

// IsDrink reports whether items of this category are prepared at the bar.
// Unspecified items are treated as food.
func (c Category) IsDrink() bool {
	return c == CategoryDrink
}

// Snapshot is an immutable view of one order at print time. It is produced by
// the order-management side and must not be mutated after it is handed over.
type Snapshot struct {
	ID          string
	TableName   string
	TableNumber *int
	ServerName  string
	Covers      int
	CreatedAt   time.Time
	PaidAt      *time.Time
	Items       []LineItem

	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	ServiceCharge decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal

	PaymentMethod string
	OutletName    string
}

// LineItem is a single ordered product. Price is per unit.
type LineItem struct {
	Name     string
	Qty      int
	Price    decimal.Decimal
	Note     string
	Category Category
}

// Extended returns price multiplied by quantity.
func (i LineItem) Extended() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// ItemCount returns the sum of quantities across items.
func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Qty
	}
	return n
}
