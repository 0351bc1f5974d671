// Package escpos converts formatted ticket lines into printer payloads.
//
// Encode maps the formatter's style tags onto transport-neutral flags. Codec
// turns those flags into ESC/POS command bytes for thermal receipt printers.
// New device protocols are added next to Codec without touching the
// formatter.
package escpos

import (
	"strings"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// EncodedLine is a ticket line together with the glyph flags a device should
// apply when printing it.
type EncodedLine struct {
	Text     string
	Align    ticket.Align
	Emphasis ticket.Emphasis
	Style    ticket.Style

	Bold         bool
	DoubleHeight bool
	// DoubleWidth halves the usable columns, so it is only set on short
	// centered lines.
	DoubleWidth bool
}

// Encode derives encoded lines from t. columns is the ticket width used to
// decide whether a tall line fits at double width; zero means t.Columns.
func Encode(t ticket.Ticket, columns int) []EncodedLine {
	if columns <= 0 {
		columns = t.Columns
	}
	if columns <= 0 {
		columns = ticket.DefaultColumns
	}

	out := make([]EncodedLine, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = encodeLine(l, columns)
	}
	return out
}

func encodeLine(l ticket.Line, columns int) EncodedLine {
	e := EncodedLine{
		Text:     l.Text,
		Align:    l.Align,
		Emphasis: l.Emphasis,
		Style:    l.Style,
	}

	switch l.Emphasis {
	case ticket.EmphasisBold:
		e.Bold = true
	case ticket.EmphasisTall:
		e.Bold = true
		e.DoubleHeight = true
		e.DoubleWidth = l.Align == ticket.AlignCenter && ticket.Width(strings.TrimSpace(l.Text)) <= columns/2
	case ticket.EmphasisNormal:
	}

	switch l.Style {
	case ticket.StyleTitle, ticket.StyleSection, ticket.StyleGrandTotal:
		e.Bold = true
	case ticket.StyleRule, ticket.StyleNote:
		// Dividers and notes never change size.
		e.DoubleHeight, e.DoubleWidth = false, false
	case ticket.StyleBody, ticket.StyleHeader, ticket.StyleItem, ticket.StyleTotal, ticket.StyleFooter:
	}
	return e
}
