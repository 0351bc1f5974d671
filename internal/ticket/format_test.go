package ticket

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ticket-dispatch/internal/domain/order"
)

// --- Helpers ---

func food(name string, qty int, price string) order.LineItem {
	return order.LineItem{Name: name, Qty: qty, Price: decimal.RequireFromString(price), Category: order.CategoryFood}
}

func drink(name string, qty int, price string) order.LineItem {
	return order.LineItem{Name: name, Qty: qty, Price: decimal.RequireFromString(price), Category: order.CategoryDrink}
}

func newSnapshot(items ...order.LineItem) *order.Snapshot {
	return &order.Snapshot{
		ID:         "a1b2-c3d4-e5f6-0000",
		TableName:  "T4",
		ServerName: "Ann",
		Covers:     2,
		CreatedAt:  time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
		Items:      items,
	}
}

func texts(t Ticket) []string {
	out := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = l.Text
	}
	return out
}

func findLine(t *testing.T, tk Ticket, prefix string) Line {
	t.Helper()
	for _, l := range tk.Lines {
		if strings.HasPrefix(strings.TrimSpace(l.Text), prefix) {
			return l
		}
	}
	t.Fatalf("no line starting with %q in:\n%s", prefix, tk.Text())
	return Line{}
}

func hasLine(tk Ticket, prefix string) bool {
	for _, l := range tk.Lines {
		if strings.HasPrefix(strings.TrimSpace(l.Text), prefix) {
			return true
		}
	}
	return false
}

// --- Tests ---

func TestFormat_KitchenOnlyFood(t *testing.T) {
	s := newSnapshot(food("Burger", 2, "12.50"), food("Fries", 1, "4.00"))

	_, err := Format(s, Bar)
	require.ErrorIs(t, err, ErrEmpty)

	tk, err := Format(s, Kitchen)
	require.NoError(t, err)
	assert.Equal(t, Kitchen, tk.Kind)
	assert.Equal(t, "A1B2C3D4", tk.OrderRef)

	title := findLine(t, tk, "KITCHEN ORDER")
	assert.Equal(t, StyleTitle, title.Style)
	assert.Equal(t, AlignCenter, title.Align)
	assert.Equal(t, Center("KITCHEN ORDER", DefaultColumns), title.Text)

	assert.Contains(t, texts(tk), "2 x BURGER")
	assert.Contains(t, texts(tk), "1 x FRIES")
	assert.Equal(t, StyleTotal, findLine(t, tk, "TOTAL ITEMS: 3").Style)

	assert.Contains(t, texts(tk), RightAlign("TABLE: T4", "COVERS: 2", DefaultColumns))
	assert.Contains(t, texts(tk), RightAlign("ORDER #A1B2C3D4", "15/06/2025 12:30", DefaultColumns))
	assert.NotContains(t, tk.Text(), "$", "kitchen ticket must not show prices")
}

func TestFormat_PreCheckTotals(t *testing.T) {
	s := newSnapshot(food("Steak", 1, "30.00"), drink("Wine", 2, "5.00"))
	s.Subtotal = decimal.RequireFromString("40.00")
	s.TaxTotal = decimal.RequireFromString("4.00")
	s.ServiceCharge = decimal.RequireFromString("2.00")
	s.DiscountTotal = decimal.Zero
	s.Total = decimal.RequireFromString("46.00")

	tk, err := Format(s, PreCheck)
	require.NoError(t, err)
	lines := texts(tk)

	assert.Contains(t, lines, RightAlign("SUBTOTAL:", "$40.00", DefaultColumns))
	assert.Contains(t, lines, RightAlign("TAX:", "$4.00", DefaultColumns))
	assert.Contains(t, lines, RightAlign("SERVICE:", "$2.00", DefaultColumns))
	assert.Contains(t, lines, RightAlign("TOTAL DUE:", "$46.00", DefaultColumns))
	assert.False(t, hasLine(tk, "DISCOUNT:"))
	assert.False(t, hasLine(tk, "PAYMENT:"))

	total := findLine(t, tk, "TOTAL DUE:")
	assert.Equal(t, StyleGrandTotal, total.Style)
	assert.Equal(t, EmphasisBold, total.Emphasis)
	assert.Equal(t, DefaultColumns, Width(total.Text))
}

func TestFormat_PricedItemRows(t *testing.T) {
	s := newSnapshot(food("Steak", 1, "30.00"), drink("Wine", 3, "5.50"))
	s.DiscountTotal = decimal.RequireFromString("3.00")

	tk, err := Format(s, Closing)
	require.NoError(t, err)
	lines := texts(tk)

	assert.Contains(t, lines, RightAlign("Steak", "$30.00", DefaultColumns))
	assert.Contains(t, lines, "Wine")
	assert.Contains(t, lines, RightAlign("   3 @ $5.50", "$16.50", DefaultColumns))
	assert.Contains(t, lines, RightAlign("DISCOUNT:", "-$3.00", DefaultColumns))
	assert.False(t, hasLine(tk, "SERVICE:"), "zero service charge is omitted")
}

func TestFormat_ClosingPaymentBlock(t *testing.T) {
	s := newSnapshot(food("Soup", 1, "6.00"))
	s.Total = decimal.RequireFromString("6.00")

	tk, err := Format(s, Closing)
	require.NoError(t, err)
	assert.False(t, hasLine(tk, "PAYMENT:"))

	paid := time.Date(2025, 6, 15, 13, 5, 0, 0, time.UTC)
	s.PaymentMethod = "card"
	s.PaidAt = &paid
	s.OutletName = "Main St"

	tk, err = Format(s, Closing)
	require.NoError(t, err)
	lines := texts(tk)
	assert.Contains(t, lines, RightAlign("PAYMENT:", "CARD", DefaultColumns))
	assert.Contains(t, lines, RightAlign("PAID AT:", "15/06/2025 13:05", DefaultColumns))
	assert.Equal(t, Center("MAIN ST", DefaultColumns), lines[0])
	assert.Equal(t, StyleHeader, tk.Lines[0].Style)
}

func TestFormat_CombinedGroupsDrinksFirst(t *testing.T) {
	s := newSnapshot(
		food("Burger", 1, "10"),
		drink("Cola", 2, "3"),
		order.LineItem{Name: "Bread", Qty: 1, Price: decimal.NewFromInt(2)},
		drink("Beer", 1, "5"),
	)

	tk, err := Format(s, Combined)
	require.NoError(t, err)

	var got []string
	for _, l := range tk.Lines {
		if l.Style == StyleItem || l.Style == StyleSection {
			got = append(got, strings.TrimSpace(l.Text))
		}
	}
	assert.Equal(t, []string{"DRINKS", "2 x COLA", "1 x BEER", "FOOD", "1 x BURGER", "1 x BREAD"}, got)
	assert.True(t, hasLine(tk, "TOTAL ITEMS: 5"))
	assert.NotContains(t, tk.Text(), "$")
}

func TestFormat_CombinedEmptyIsNotAnError(t *testing.T) {
	tk, err := Format(newSnapshot(), Combined)
	require.NoError(t, err)
	assert.True(t, hasLine(tk, "TOTAL ITEMS: 0"))
	assert.False(t, hasLine(tk, "DRINKS"))
}

func TestFormat_Notes(t *testing.T) {
	it := food("Burger", 1, "10")
	it.Note = "no onions"
	tk, err := Format(newSnapshot(it), Kitchen)
	require.NoError(t, err)

	note := findLine(t, tk, ">> no onions")
	assert.Equal(t, StyleNote, note.Style)
}

func TestFormat_Deterministic(t *testing.T) {
	s := newSnapshot(food("Burger", 2, "12.50"), drink("Cola", 1, "3"))
	s.PaymentMethod = "cash"
	for _, kind := range []Kind{Kitchen, Bar, PreCheck, Closing, Combined} {
		t.Run(kind.String(), func(t *testing.T) {
			a, err := Format(s, kind)
			require.NoError(t, err)
			b, err := Format(s, kind)
			require.NoError(t, err)
			assert.Equal(t, a, b)
			assert.Equal(t, a.Text(), b.Text())
		})
	}
}

func TestFormat_WidthInvariant(t *testing.T) {
	long := strings.Repeat("Very Long Dish Name ", 4)
	s := newSnapshot(food("Burger", 2, "12.50"), drink("Cola", 1, "3"), food(long, 1, "99.99"))
	s.Subtotal = decimal.RequireFromString("128.49")
	s.Total = s.Subtotal
	s.PaymentMethod = "card"

	for _, kind := range []Kind{Kitchen, Bar, PreCheck, Closing, Combined} {
		tk, err := Format(s, kind)
		require.NoError(t, err)
		for _, l := range tk.Lines {
			if strings.Contains(l.Text, strings.TrimSpace(long)) || strings.Contains(l.Text, strings.ToUpper(strings.TrimSpace(long))) {
				// Overflowing rows keep the full text.
				assert.Greater(t, Width(l.Text), DefaultColumns)
				continue
			}
			assert.LessOrEqual(t, Width(l.Text), DefaultColumns, "%s: %q", kind, l.Text)
		}
	}
}

func TestFormat_FilterCorrectness(t *testing.T) {
	for n := 0; n <= 2; n++ {
		for m := 0; m <= 2; m++ {
			t.Run(fmt.Sprintf("food=%d drinks=%d", n, m), func(t *testing.T) {
				var items []order.LineItem
				for i := 0; i < n; i++ {
					items = append(items, food(fmt.Sprintf("F%d", i), 1, "1"))
				}
				for i := 0; i < m; i++ {
					items = append(items, drink(fmt.Sprintf("D%d", i), 1, "1"))
				}
				s := newSnapshot(items...)

				_, err := Format(s, Kitchen)
				assert.Equal(t, n == 0, err != nil)
				_, err = Format(s, Bar)
				assert.Equal(t, m == 0, err != nil)
			})
		}
	}
}

func TestFormat_KitchenPreservesOrder(t *testing.T) {
	s := newSnapshot(
		food("Alpha", 1, "1"),
		drink("Water", 1, "1"),
		food("Bravo", 3, "1"),
		order.LineItem{Name: "Charlie", Qty: 1, Price: decimal.Zero},
		drink("Juice", 1, "1"),
		food("Delta", 1, "1"),
	)
	tk, err := Format(s, Kitchen)
	require.NoError(t, err)

	var got []string
	for _, l := range tk.Lines {
		if l.Style == StyleItem {
			got = append(got, l.Text)
		}
	}
	assert.Equal(t, []string{"1 x ALPHA", "3 x BRAVO", "1 x CHARLIE", "1 x DELTA"}, got)

	tk, err = Format(s, Bar)
	require.NoError(t, err)
	assert.Contains(t, texts(tk), "1 x WATER")
	assert.True(t, hasLine(tk, "TOTAL ITEMS: 2"))
}

func TestFormatter_Options(t *testing.T) {
	f := Formatter{Columns: 32, Currency: "€"}
	s := newSnapshot(food("Soup", 1, "6"))
	s.Total = decimal.RequireFromString("6")

	tk, err := f.Format(s, PreCheck)
	require.NoError(t, err)
	assert.Equal(t, 32, tk.Columns)
	assert.Contains(t, texts(tk), RightAlign("TOTAL DUE:", "€6.00", 32))
	for _, l := range tk.Lines {
		assert.LessOrEqual(t, Width(l.Text), 32, l.Text)
	}

	_, err = f.Format(s, Kind(42))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestTicket_Text(t *testing.T) {
	tk := Ticket{Lines: []Line{{Text: "a"}, {Text: "b"}}}
	assert.Equal(t, "a\nb\n", tk.Text())
}

func TestFormat_OutletOnGuestTickets(t *testing.T) {
	s := newSnapshot(food("Burger", 1, "12.50"), drink("Cola", 1, "3.00"))
	s.OutletName = "Main St"

	for _, kind := range []Kind{Kitchen, Bar, Combined, PreCheck, Closing} {
		tk, err := Format(s, kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind.ShowsPrices(), hasLine(tk, "MAIN ST"), kind)
	}
}
