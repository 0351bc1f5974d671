package ticket

import (
	"strings"

	"github.com/go-faster/errors"
)

// Kind selects the audience of a ticket.
type Kind int

const (
	Kitchen Kind = iota + 1
	Bar
	PreCheck
	Closing
	Combined
)

var kindNames = map[Kind]string{
	Kitchen:  "kitchen",
	Bar:      "bar",
	PreCheck: "precheck",
	Closing:  "closing",
	Combined: "combined",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ShowsPrices reports whether item prices and the totals block are printed.
func (k Kind) ShowsPrices() bool {
	return k == PreCheck || k == Closing
}

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown ticket kind")

// ParseKind maps a name such as "kitchen" or "pre-check" to a Kind.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
}
