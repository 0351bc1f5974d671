package ticket

import (
	"strings"
	"unicode/utf8"
)

// DefaultColumns is the character width of an 80mm thermal roll.
const DefaultColumns = 42

// Divider glyphs.
const (
	RuleSingle = '─'
	RuleDouble = '═'
)

// Width returns the column count of s.
func Width(s string) int {
	return utf8.RuneCountInString(s)
}

// Center pads text with floor((width-len)/2) leading spaces. Text wider than
// width is returned unchanged.
func Center(text string, width int) string {
	pad := (width - Width(text)) / 2
	if pad <= 0 {
		return text
	}
	return strings.Repeat(" ", pad) + text
}

// RightAlign places value flush right of label, keeping at least one space
// between them when the pair overflows.
func RightAlign(label, value string, width int) string {
	gap := width - Width(label) - Width(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

// Rule returns a horizontal divider of the given width.
func Rule(r rune, width int) string {
	return strings.Repeat(string(r), width)
}

// OrderRef derives the short reference printed on tickets: alphanumerics of
// id, uppercased, first eight characters.
func OrderRef(id string) string {
	var b strings.Builder
	n := 0
	for _, r := range id {
		if n == 8 {
			break
		}
		if r < utf8.RuneSelf && (r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
			n++
		}
	}
	return strings.ToUpper(b.String())
}
