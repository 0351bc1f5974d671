package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for snapshot validation.
var (
	ErrEmptyID       = errors.New("order id required")
	ErrNegativeMoney = errors.New("monetary amount must not be negative")
)

// InvalidItemError indicates a line item that cannot be printed.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

// Validate checks the invariants the formatter relies on. Totals are trusted
// and are not re-derived here.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	for i, it := range s.Items {
		switch {
		case it.Name == "":
			return &InvalidItemError{Index: i, Reason: "name required"}
		case it.Qty < 1:
			return &InvalidItemError{Index: i, Reason: "quantity must be at least 1"}
		case it.Price.IsNegative():
			return &InvalidItemError{Index: i, Reason: "price must not be negative"}
		}
		switch it.Category {
		case CategoryUnspecified, CategoryFood, CategoryDrink:
		default:
			return &InvalidItemError{Index: i, Reason: fmt.Sprintf("unknown category %q", it.Category)}
		}
	}
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", s.Subtotal},
		{"tax_total", s.TaxTotal},
		{"service_charge", s.ServiceCharge},
		{"discount_total", s.DiscountTotal},
		{"total", s.Total},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return errors.Wrap(ErrNegativeMoney, a.name)
		}
	}
	return nil
}
