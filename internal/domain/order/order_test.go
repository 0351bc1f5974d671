package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		ID:        "a1b2-c3d4",
		TableName: "T4",
		Covers:    2,
		Items: []LineItem{
			{Name: "Burger", Qty: 2, Price: decimal.RequireFromString("12.50"), Category: CategoryFood},
			{Name: "Cola", Qty: 1, Price: decimal.RequireFromString("3.00"), Category: CategoryDrink},
		},
		Subtotal: decimal.RequireFromString("28.00"),
		Total:    decimal.RequireFromString("28.00"),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Snapshot)
		wantErr error
		wantIdx int
	}{
		{name: "valid", mutate: func(*Snapshot) {}},
		{name: "empty id", mutate: func(s *Snapshot) { s.ID = "" }, wantErr: ErrEmptyID},
		{name: "negative total", mutate: func(s *Snapshot) { s.Total = decimal.NewFromInt(-1) }, wantErr: ErrNegativeMoney},
		{name: "negative discount", mutate: func(s *Snapshot) { s.DiscountTotal = decimal.NewFromInt(-5) }, wantErr: ErrNegativeMoney},
		{name: "zero quantity", mutate: func(s *Snapshot) { s.Items[1].Qty = 0 }, wantIdx: 1},
		{name: "empty name", mutate: func(s *Snapshot) { s.Items[0].Name = "" }, wantIdx: 0},
		{name: "negative price", mutate: func(s *Snapshot) { s.Items[0].Price = decimal.NewFromInt(-1) }, wantIdx: 0},
		{name: "unknown category", mutate: func(s *Snapshot) { s.Items[1].Category = "dessert" }, wantIdx: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(s)
			err := s.Validate()

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.name != "valid":
				var itemErr *InvalidItemError
				require.ErrorAs(t, err, &itemErr)
				assert.Equal(t, tt.wantIdx, itemErr.Index)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestCategory_IsDrink(t *testing.T) {
	assert.True(t, CategoryDrink.IsDrink())
	assert.False(t, CategoryFood.IsDrink())
	assert.False(t, CategoryUnspecified.IsDrink())
}

func TestItemCount(t *testing.T) {
	s := validSnapshot()
	assert.Equal(t, 3, ItemCount(s.Items))
	assert.Equal(t, 0, ItemCount(nil))
	assert.True(t, decimal.RequireFromString("25.00").Equal(s.Items[0].Extended()))
}

// Totals are trusted input, but the producer is expected to keep them consistent.
func TestSnapshot_TotalsConsistent(t *testing.T) {
	s := validSnapshot()
	s.TaxTotal = decimal.RequireFromString("2.80")
	s.ServiceCharge = decimal.RequireFromString("1.20")
	s.DiscountTotal = decimal.RequireFromString("2.00")
	s.Total = decimal.RequireFromString("30.00")

	derived := s.Subtotal.Add(s.TaxTotal).Add(s.ServiceCharge).Sub(s.DiscountTotal)
	assert.True(t, derived.Equal(s.Total), "derived %s, total %s", derived, s.Total)
}
