// Command ticket-print formats order snapshots and sends them to a network
// receipt printer, or lists the printers on the local network.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/ticket-dispatch/internal/app"
	"github.com/xenking/ticket-dispatch/internal/dispatch"
	"github.com/xenking/ticket-dispatch/internal/domain/order"
	"github.com/xenking/ticket-dispatch/internal/printer"
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lvl := zapcore.InfoLevel
	if cfg.Verbose {
		lvl = zapcore.DebugLevel
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(lvl)
	logCfg.DisableStacktrace = true
	lg, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if cfg.Discover {
		err = discover(ctx, os.Stdout)
	} else {
		err = run(ctx, lg, cfg, os.Stdout)
	}
	if err != nil {
		lg.Error("Failed", zap.Error(err))
		os.Exit(1)
	}
}

func discover(ctx context.Context, out io.Writer) error {
	subnet, err := printer.LocalSubnet()
	if err != nil {
		return err
	}
	found, err := printer.Discover(ctx, subnet, printer.DiscoverOptions{})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return errors.Errorf("no printers on %s.0/24", subnet)
	}
	for _, addr := range found {
		fmt.Fprintln(out, addr)
	}
	return nil
}

var errSomeFailed = errors.New("some tickets could not be printed")

func run(ctx context.Context, lg *zap.Logger, cfg *Config, out io.Writer) error {
	kind, err := ticket.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}

	var snapshots []*order.Snapshot
	for _, path := range cfg.Input {
		batch, err := readSnapshots(path)
		if err != nil {
			return errors.Wrap(err, path)
		}
		snapshots = append(snapshots, batch...)
	}

	surface, err := app.NewSurface(app.FallbackConfig{Mode: cfg.Fallback, Dir: cfg.PDFDir}, lg)
	if err != nil {
		return err
	}
	transport := printer.NewTCP(printer.TCPConfig{Addr: cfg.Printer}, lg)
	d, err := dispatch.New(transport, surface, dispatch.Config{
		Columns:         cfg.Columns,
		Currency:        cfg.Currency,
		ConnectTimeout:  cfg.ConnectTimeout,
		FallbackTimeout: cfg.FallbackTimeout,
		ManualConnect:   cfg.Printer == "",
		SendRetries:     cfg.Retries,
	}, dispatch.Options{Logger: lg})
	if err != nil {
		return err
	}
	defer func() { _ = d.Disconnect(context.Background()) }()

	failed := 0
	for _, s := range snapshots {
		res, err := d.Dispatch(ctx, s, kind)
		if err != nil {
			return errors.Wrapf(err, "dispatch %s", s.ID)
		}
		fmt.Fprintf(out, "%s\t%s\t%s", ticket.OrderRef(s.ID), kind, res.Status)
		if res.Reason != "" && res.Status != dispatch.StatusSent {
			fmt.Fprintf(out, "\t%s", res.Reason)
		}
		fmt.Fprintln(out)
		if res.Status == dispatch.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return errors.Wrapf(errSomeFailed, "%d of %d", failed, len(snapshots))
	}
	return nil
}

// readSnapshots decodes one snapshot or an array of them from path. Files
// ending in .gz are decompressed; "-" reads stdin.
func readSnapshots(path string) ([]*order.Snapshot, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open")
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return order.DecodeSnapshots(data)
}
