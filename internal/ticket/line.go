package ticket

// Align is the horizontal placement of a line.
type Align uint8

const (
	AlignLeft Align = iota
	AlignCenter
)

// Emphasis is the requested glyph weight of a line.
type Emphasis uint8

const (
	EmphasisNormal Emphasis = iota
	EmphasisBold
	EmphasisTall
)

// Style tags the role of a line so encoders never have to inspect its text.
type Style uint8

const (
	StyleBody Style = iota
	StyleHeader
	StyleTitle
	StyleRule
	StyleSection
	StyleItem
	StyleNote
	StyleTotal
	StyleGrandTotal
	StyleFooter
)

// Line is one printed row. Text is already laid out to the ticket width.
type Line struct {
	Text     string
	Align    Align
	Emphasis Emphasis
	Style    Style
}

// Ticket is the formatted output for one snapshot and kind.
type Ticket struct {
	Kind     Kind
	OrderRef string
	Columns  int
	Lines    []Line
}

// Text joins the ticket lines with newlines.
func (t Ticket) Text() string {
	n := 0
	for _, l := range t.Lines {
		n += len(l.Text) + 1
	}
	buf := make([]byte, 0, n)
	for _, l := range t.Lines {
		buf = append(buf, l.Text...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
