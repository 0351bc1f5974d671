package fallback

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

func sampleTicket() ticket.Ticket {
	return ticket.Ticket{
		Kind:     ticket.Closing,
		OrderRef: "ORD7F3A9",
		Columns:  ticket.DefaultColumns,
		Lines: []ticket.Line{
			{Text: ticket.Rule(ticket.RuleDouble, 42), Style: ticket.StyleRule},
			{Text: ticket.Center("RECEIPT", 42), Align: ticket.AlignCenter, Emphasis: ticket.EmphasisTall, Style: ticket.StyleTitle},
			{Text: ticket.RightAlign("Fish & Chips", "$9.00", 42), Style: ticket.StyleItem},
			{Text: "", Style: ticket.StyleBody},
			{Text: ticket.RightAlign("TOTAL:", "$9.00", 42), Emphasis: ticket.EmphasisBold, Style: ticket.StyleGrandTotal},
		},
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestTerminal_Render(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	calls := 0
	err := term.Render(context.Background(), Job{ID: "job-1", Ticket: sampleTicket()}, func(err error) {
		assert.NoError(t, err)
		calls++
	})
	require.NoError(t, err)
	term.Release(Job{ID: "job-1"})

	assert.Equal(t, 1, calls)
	out := buf.String()
	assert.Contains(t, out, "RECEIPT")
	assert.Contains(t, out, "Fish & Chips")
	assert.Contains(t, out, "TOTAL:")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTerminal_WriteError(t *testing.T) {
	term := NewTerminal(failingWriter{})

	called := false
	err := term.Render(context.Background(), Job{ID: "job-1", Ticket: sampleTicket()}, func(error) { called = true })
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleTicket())
	require.NoError(t, err)

	assert.Contains(t, html, `<pre class="t">RECEIPT</pre>`)
	assert.Contains(t, html, "Fish &amp; Chips")
	assert.Contains(t, html, `<pre class="b">TOTAL:`)
	assert.Contains(t, html, `<pre class=""> </pre>`, "blank lines keep their height")
	assert.NotContains(t, html, "<script")
}

func TestPDF_Path(t *testing.T) {
	p := NewPDF(PDFConfig{Dir: "/tmp/tickets"}, zap.NewNop())
	assert.Equal(t, "/tmp/tickets/ticket-ORD7F3A9-job-1.pdf", p.Path(Job{ID: "job-1", Ticket: sampleTicket()}))
}

func TestPDF_RenderUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	p := NewPDF(PDFConfig{Dir: filepath.Join(blocker, "out"), ExecPath: "/nonexistent/chrome"}, zap.NewNop())
	job := Job{ID: "job-1", Ticket: sampleTicket()}

	err := p.Render(context.Background(), job, func(error) { t.Error("done must not be called") })
	assert.ErrorIs(t, err, ErrUnavailable)

	// Releasing a job that never started is a no-op.
	p.Release(job)
}

func TestPDF_ReportsAsyncFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewPDF(PDFConfig{Dir: dir, ExecPath: filepath.Join(dir, "no-chrome")}, zap.NewNop())
	job := Job{ID: "job-2", Ticket: sampleTicket()}

	result := make(chan error, 1)
	require.NoError(t, p.Render(context.Background(), job, func(err error) { result <- err }))
	defer p.Release(job)

	select {
	case err := <-result:
		require.Error(t, err)
		assert.NoFileExists(t, p.Path(job))
	case <-time.After(10 * time.Second):
		t.Fatal("render failure was not reported")
	}
}
