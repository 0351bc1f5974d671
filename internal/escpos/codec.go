package escpos

import (
	"bytes"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// ESC/POS command bytes.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

var (
	cmdInit       = []byte{esc, '@'}
	cmdCodePage   = []byte{esc, 't', 0x00} // PC437: box drawing glyphs ─ and ═
	cmdPartialCut = []byte{gs, 'V', 'A', 0x00}
)

// Codec renders encoded lines as an ESC/POS job.
type Codec struct {
	// FeedLines is the paper feed before the cut. Zero means 3.
	FeedLines int
	// NoCut disables the trailing cut command.
	NoCut bool
}

// Marshal returns the full job: init, code page, lines, feed and cut.
// Alignment, weight and size commands are only emitted when they change.
func (c Codec) Marshal(lines []EncodedLine) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder())

	var buf bytes.Buffer
	buf.Write(cmdInit)
	buf.Write(cmdCodePage)

	st := printState{}
	for i, l := range lines {
		text := l.Text
		want := printState{bold: l.Bold, size: sizeByte(l)}
		if l.DoubleWidth {
			// Pre-padded centering assumes single width; let the printer center.
			want.center = true
			text = strings.TrimSpace(text)
		}
		st.transition(&buf, want)

		raw, err := enc.String(text)
		if err != nil {
			return nil, errors.Wrapf(err, "encode line %d", i)
		}
		buf.WriteString(raw)
		buf.WriteByte(lf)
	}
	st.transition(&buf, printState{})

	feed := c.FeedLines
	if feed <= 0 {
		feed = 3
	}
	buf.Write([]byte{esc, 'd', byte(feed)})
	if !c.NoCut {
		buf.Write(cmdPartialCut)
	}
	return buf.Bytes(), nil
}

// MarshalTicket encodes t and renders it in one step.
func (c Codec) MarshalTicket(t ticket.Ticket) ([]byte, error) {
	return c.Marshal(Encode(t, t.Columns))
}

func sizeByte(l EncodedLine) byte {
	var n byte
	if l.DoubleHeight {
		n |= 0x01
	}
	if l.DoubleWidth {
		n |= 0x10
	}
	return n
}

type printState struct {
	center bool
	bold   bool
	size   byte
}

func (s *printState) transition(buf *bytes.Buffer, want printState) {
	if s.center != want.center {
		var n byte
		if want.center {
			n = 1
		}
		buf.Write([]byte{esc, 'a', n})
	}
	if s.bold != want.bold {
		var n byte
		if want.bold {
			n = 1
		}
		buf.Write([]byte{esc, 'E', n})
	}
	if s.size != want.size {
		buf.Write([]byte{gs, '!', want.size})
	}
	*s = want
}
