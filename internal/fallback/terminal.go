package fallback

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// Terminal writes a framed preview of the ticket to w. It completes as soon
// as the preview is written.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	frame lipgloss.Style
	bold  lipgloss.Style
}

var _ Surface = (*Terminal)(nil)

// NewTerminal creates a terminal surface writing to w.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:     w,
		frame: r.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		bold:  r.NewStyle().Bold(true),
	}
}

// Render implements Surface.
func (t *Terminal) Render(_ context.Context, job Job, done func(error)) error {
	rows := make([]string, len(job.Ticket.Lines))
	for i, l := range job.Ticket.Lines {
		if l.Emphasis == ticket.EmphasisNormal {
			rows[i] = l.Text
		} else {
			rows[i] = t.bold.Render(l.Text)
		}
	}
	out := t.frame.Render(strings.Join(rows, "\n")) + "\n"

	t.mu.Lock()
	_, err := io.WriteString(t.w, out)
	t.mu.Unlock()
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	done(nil)
	return nil
}

// Release implements Surface. The terminal holds no per-job state.
func (t *Terminal) Release(Job) {}
