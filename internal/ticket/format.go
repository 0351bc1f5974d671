package ticket

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/ticket-dispatch/internal/domain/order"
)

// ErrEmpty is returned when the requested kind has no items to print.
// Callers must not print a blank ticket.
var ErrEmpty = errors.New("ticket has no items")

const timeLayout = "02/01/2006 15:04"

// Formatter turns snapshots into tickets. The zero value prints 42 columns
// with a "$" currency symbol.
type Formatter struct {
	Columns  int
	Currency string
	// Location overrides the zone timestamps are printed in.
	Location *time.Location
}

// Format renders s as a ticket of the given kind using the default Formatter.
func Format(s *order.Snapshot, kind Kind) (Ticket, error) {
	return Formatter{}.Format(s, kind)
}

// Format renders s as a ticket of the given kind. It is pure: the same
// snapshot and kind always produce the same lines.
func (f Formatter) Format(s *order.Snapshot, kind Kind) (Ticket, error) {
	b := &builder{cols: f.columns(), currency: f.currency(), loc: f.Location}

	switch kind {
	case Kitchen, Bar:
		items := filter(s.Items, kind == Bar)
		if len(items) == 0 {
			return Ticket{}, errors.Wrap(ErrEmpty, kind.String())
		}
		title := "KITCHEN ORDER"
		if kind == Bar {
			title = "BAR ORDER"
		}
		b.header(s, title, kind.ShowsPrices())
		b.prepItems(items)
		b.itemCount(items)
	case Combined:
		b.header(s, "ORDER TICKET", kind.ShowsPrices())
		drinks, food := filter(s.Items, true), filter(s.Items, false)
		if len(drinks) > 0 {
			b.section("DRINKS")
			b.prepItems(drinks)
		}
		if len(food) > 0 {
			b.section("FOOD")
			b.prepItems(food)
		}
		b.itemCount(s.Items)
	case PreCheck:
		b.header(s, "PRE-CHECK", kind.ShowsPrices())
		b.pricedItems(s.Items)
		b.totals(s, "TOTAL DUE:")
		b.footer("THIS IS NOT A RECEIPT")
	case Closing:
		b.header(s, "RECEIPT", kind.ShowsPrices())
		b.pricedItems(s.Items)
		b.totals(s, "TOTAL:")
		if s.PaymentMethod != "" {
			b.payment(s)
		}
		b.footer("THANK YOU!")
	default:
		return Ticket{}, errors.Wrapf(ErrUnknownKind, "%d", int(kind))
	}

	return Ticket{
		Kind:     kind,
		OrderRef: OrderRef(s.ID),
		Columns:  b.cols,
		Lines:    b.lines,
	}, nil
}

func (f Formatter) columns() int {
	if f.Columns > 0 {
		return f.Columns
	}
	return DefaultColumns
}

func (f Formatter) currency() string {
	if f.Currency != "" {
		return f.Currency
	}
	return "$"
}

// filter keeps snapshot order. Unspecified items route to the kitchen.
func filter(items []order.LineItem, drinks bool) []order.LineItem {
	var out []order.LineItem
	for _, it := range items {
		if it.Category.IsDrink() == drinks {
			out = append(out, it)
		}
	}
	return out
}

type builder struct {
	cols     int
	currency string
	loc      *time.Location
	lines    []Line
}

func (b *builder) add(text string, align Align, emph Emphasis, style Style) {
	b.lines = append(b.lines, Line{Text: text, Align: align, Emphasis: emph, Style: style})
}

func (b *builder) left(text string, emph Emphasis, style Style) {
	b.add(text, AlignLeft, emph, style)
}

func (b *builder) center(text string, emph Emphasis, style Style) {
	b.add(Center(text, b.cols), AlignCenter, emph, style)
}

func (b *builder) pair(label, value string, emph Emphasis, style Style) {
	b.add(RightAlign(label, value, b.cols), AlignLeft, emph, style)
}

func (b *builder) rule(r rune) {
	b.add(Rule(r, b.cols), AlignLeft, EmphasisNormal, StyleRule)
}

func (b *builder) money(d decimal.Decimal) string {
	return b.currency + d.StringFixed(2)
}

func (b *builder) when(t time.Time) string {
	if b.loc != nil {
		t = t.In(b.loc)
	}
	return t.Format(timeLayout)
}

func (b *builder) header(s *order.Snapshot, title string, guest bool) {
	if guest && s.OutletName != "" {
		b.center(strings.ToUpper(s.OutletName), EmphasisBold, StyleHeader)
	}
	b.rule(RuleDouble)
	b.center(title, EmphasisTall, StyleTitle)
	b.rule(RuleDouble)

	ref := "ORDER #" + OrderRef(s.ID)
	if s.CreatedAt.IsZero() {
		b.left(ref, EmphasisBold, StyleHeader)
	} else {
		b.pair(ref, b.when(s.CreatedAt), EmphasisBold, StyleHeader)
	}
	b.pair("TABLE: "+tableLabel(s), "COVERS: "+strconv.Itoa(s.Covers), EmphasisNormal, StyleHeader)
	if s.ServerName != "" {
		b.left("SERVER: "+s.ServerName, EmphasisNormal, StyleHeader)
	}
	b.rule(RuleSingle)
}

func tableLabel(s *order.Snapshot) string {
	switch {
	case s.TableNumber == nil:
		if s.TableName == "" {
			return "-"
		}
		return s.TableName
	case s.TableName == "":
		return "#" + strconv.Itoa(*s.TableNumber)
	default:
		return fmt.Sprintf("%s (#%d)", s.TableName, *s.TableNumber)
	}
}

func (b *builder) section(name string) {
	b.center(name, EmphasisBold, StyleSection)
	b.rule(RuleSingle)
}

func (b *builder) note(it order.LineItem) {
	if it.Note != "" {
		b.left("   >> "+it.Note, EmphasisNormal, StyleNote)
	}
}

// prepItems prints "qty x NAME" rows for preparation stations.
func (b *builder) prepItems(items []order.LineItem) {
	for _, it := range items {
		b.left(fmt.Sprintf("%d x %s", it.Qty, strings.ToUpper(it.Name)), EmphasisBold, StyleItem)
		b.note(it)
	}
}

func (b *builder) itemCount(items []order.LineItem) {
	b.rule(RuleSingle)
	b.left("TOTAL ITEMS: "+strconv.Itoa(order.ItemCount(items)), EmphasisBold, StyleTotal)
	b.rule(RuleDouble)
}

// pricedItems prints one row per unit-quantity item and a name row plus a
// "qty @ unit" row for multi-quantity items.
func (b *builder) pricedItems(items []order.LineItem) {
	for _, it := range items {
		if it.Qty == 1 {
			b.pair(it.Name, b.money(it.Price), EmphasisNormal, StyleItem)
		} else {
			b.left(it.Name, EmphasisNormal, StyleItem)
			b.pair(fmt.Sprintf("   %d @ %s", it.Qty, b.money(it.Price)), b.money(it.Extended()), EmphasisNormal, StyleItem)
		}
		b.note(it)
	}
	b.rule(RuleSingle)
}

func (b *builder) totals(s *order.Snapshot, totalLabel string) {
	b.pair("SUBTOTAL:", b.money(s.Subtotal), EmphasisNormal, StyleTotal)
	b.pair("TAX:", b.money(s.TaxTotal), EmphasisNormal, StyleTotal)
	if s.ServiceCharge.IsPositive() {
		b.pair("SERVICE:", b.money(s.ServiceCharge), EmphasisNormal, StyleTotal)
	}
	if s.DiscountTotal.IsPositive() {
		b.pair("DISCOUNT:", "-"+b.money(s.DiscountTotal), EmphasisNormal, StyleTotal)
	}
	b.rule(RuleDouble)
	b.pair(totalLabel, b.money(s.Total), EmphasisBold, StyleGrandTotal)
	b.rule(RuleDouble)
}

func (b *builder) payment(s *order.Snapshot) {
	b.pair("PAYMENT:", strings.ToUpper(s.PaymentMethod), EmphasisNormal, StyleBody)
	if s.PaidAt != nil {
		b.pair("PAID AT:", b.when(*s.PaidAt), EmphasisNormal, StyleBody)
	}
	b.rule(RuleSingle)
}

func (b *builder) footer(text string) {
	b.center(text, EmphasisBold, StyleFooter)
}
