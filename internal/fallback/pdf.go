package fallback

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// PDFConfig configures the headless Chrome surface.
type PDFConfig struct {
	// Dir receives ticket-<ref>-<job>.pdf files.
	Dir string
	// ExecPath overrides Chrome detection.
	ExecPath string
	// PaperWidth in inches. Zero means 80mm.
	PaperWidth float64
}

// PDF prints tickets to PDF files with headless Chrome. Rendering runs in the
// background; Release cancels a render that is still in progress.
type PDF struct {
	cfg PDFConfig
	lg  *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var _ Surface = (*PDF)(nil)

// NewPDF creates a PDF surface. Chrome is located lazily on first Render.
func NewPDF(cfg PDFConfig, lg *zap.Logger) *PDF {
	if cfg.PaperWidth <= 0 {
		cfg.PaperWidth = 80 / 25.4
	}
	return &PDF{cfg: cfg, lg: lg, cancels: make(map[string]context.CancelFunc)}
}

// Path returns the output file for job.
func (p *PDF) Path(job Job) string {
	return filepath.Join(p.cfg.Dir, "ticket-"+job.Ticket.OrderRef+"-"+job.ID+".pdf")
}

// Render implements Surface.
func (p *PDF) Render(ctx context.Context, job Job, done func(error)) error {
	execPath := p.cfg.ExecPath
	if execPath == "" {
		var ok bool
		if execPath, ok = FindChrome(); !ok {
			return errors.Wrap(ErrUnavailable, "chrome/chromium not found")
		}
	}
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	html, err := RenderHTML(job.Ticket)
	if err != nil {
		return errors.Wrap(err, "render html")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	// Detached from ctx: the surface outlives the caller until done or Release.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	cdpCtx, cdpCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		cdpCancel()
		allocCancel()
	}

	p.mu.Lock()
	p.cancels[job.ID] = cancel
	p.mu.Unlock()

	out := p.Path(job)
	go func() {
		var pdf []byte
		err := chromedp.Run(cdpCtx,
			chromedp.Navigate("data:text/html,"+strings.ReplaceAll(url.QueryEscape(html), "+", "%20")),
			chromedp.ActionFunc(func(ctx context.Context) error {
				buf, _, err := page.PrintToPDF().
					WithPrintBackground(true).
					WithPaperWidth(p.cfg.PaperWidth).
					WithPreferCSSPageSize(false).
					Do(ctx)
				pdf = buf
				return err
			}),
		)
		if err != nil {
			p.lg.Warn("PDF render failed", zap.String("job_id", job.ID), zap.Error(err))
			done(errors.Wrap(err, "print to pdf"))
			return
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			p.lg.Warn("PDF write failed", zap.String("path", out), zap.Error(err))
			done(errors.Wrap(err, "write pdf"))
			return
		}
		p.lg.Info("Ticket saved as PDF", zap.String("path", out))
		done(nil)
	}()
	return nil
}

// Release implements Surface.
func (p *PDF) Release(job Job) {
	p.mu.Lock()
	cancel, ok := p.cancels[job.ID]
	delete(p.cancels, job.ID)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

var pageTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { margin: 0; padding: 4mm; font-family: "DejaVu Sans Mono", monospace; font-size: 10pt; }
pre { margin: 0; white-space: pre; }
.b { font-weight: bold; }
.t { font-weight: bold; font-size: 14pt; text-align: center; }
</style></head><body>
{{- range .}}<pre class="{{.Class}}">{{.Text}}</pre>
{{end -}}
</body></html>`))

type htmlLine struct {
	Class string
	Text  string
}

// RenderHTML lays the ticket out as a monospace HTML page.
func RenderHTML(t ticket.Ticket) (string, error) {
	rows := make([]htmlLine, len(t.Lines))
	for i, l := range t.Lines {
		row := htmlLine{Text: l.Text}
		switch l.Emphasis {
		case ticket.EmphasisBold:
			row.Class = "b"
		case ticket.EmphasisTall:
			row.Class = "t"
			row.Text = strings.TrimSpace(l.Text)
		case ticket.EmphasisNormal:
		}
		if row.Text == "" {
			row.Text = " "
		}
		rows[i] = row
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FindChrome looks for a Chrome or Chromium binary on PATH and in the usual
// install locations.
func FindChrome() (string, bool) {
	for _, bin := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path, true
		}
	}
	for _, path := range chromePaths() {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func chromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return nil
	}
}
