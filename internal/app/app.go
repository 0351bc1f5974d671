package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/ticket-dispatch/internal/agent"
	"github.com/xenking/ticket-dispatch/internal/dispatch"
	"github.com/xenking/ticket-dispatch/internal/escpos"
	"github.com/xenking/ticket-dispatch/internal/fallback"
	"github.com/xenking/ticket-dispatch/internal/handler"
	"github.com/xenking/ticket-dispatch/internal/printer"
	"github.com/xenking/ticket-dispatch/internal/ticket"
	"github.com/xenking/ticket-dispatch/pkg/health"
	"github.com/xenking/ticket-dispatch/pkg/httpmiddleware"
)

// Run wires the printer, dispatcher, agent and HTTP server, and blocks until
// ctx is done or one of them fails.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("agent_url", cfg.Agent.URL),
		zap.String("fallback", cfg.Fallback.Mode),
	)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return errors.Wrap(err, "load timezone")
	}
	kind, err := ticket.ParseKind(cfg.Agent.Kind)
	if err != nil {
		return errors.Wrap(err, "parse agent kind")
	}

	addr, err := resolvePrinter(ctx, lg, cfg.Printer.Addr)
	if err != nil {
		return err
	}
	transport := printer.NewTCP(printer.TCPConfig{
		Name:         cfg.Printer.Name,
		Addr:         addr,
		WriteTimeout: cfg.Printer.WriteTimeout,
		Settle:       cfg.Printer.Settle,
	}, lg)

	surface, err := NewSurface(cfg.Fallback, lg)
	if err != nil {
		return err
	}

	d, err := dispatch.New(transport, surface, dispatch.Config{
		Columns:         cfg.Printer.Columns,
		Currency:        cfg.Currency,
		Location:        loc,
		ConnectTimeout:  cfg.Printer.ConnectTimeout,
		FallbackTimeout: cfg.Fallback.Timeout,
		ManualConnect:   !cfg.Printer.AutoConnect,
		SendRetries:     cfg.Printer.SendRetries,
		Codec: escpos.Codec{
			FeedLines: cfg.Printer.FeedLines,
			NoCut:     cfg.Printer.NoCut,
		},
	}, dispatch.Options{
		Logger:         lg,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}

	// Connect eagerly so the first ticket does not pay for the handshake.
	if cfg.Printer.AutoConnect {
		if _, err := d.Connect(ctx); err != nil {
			lg.Warn("Printer not reachable yet", zap.Error(err))
		}
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddReadinessCheck("printer", time.Second, health.StatusCheck(func() bool {
		return d.PrinterStatus().Connected() || d.HasFallback()
	}, "printer unreachable and no fallback configured"))
	healthSvc.AddInfo("printer", func() string { return d.PrinterStatus().State.String() })
	healthSvc.AddInfo("dispatcher", func() string { return d.State().String() })
	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	mux := healthSvc.Handler()
	mountAPI(mux, d, kind, cfg.API.Key, lg)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Health.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "ticket-dispatch",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.LogRequests(),
			httpmiddleware.Recovery(),
		),
	}

	ag := agent.New(agent.Config{
		URL:            cfg.Agent.URL,
		APIKey:         cfg.Agent.APIKey,
		AgentKey:       cfg.Agent.AgentKey,
		ReconnectDelay: cfg.Agent.ReconnectDelay,
		DefaultKind:    kind,
		DedupCapacity:  cfg.Agent.DedupCapacity,
		DedupFPR:       cfg.Agent.DedupFPR,
	}, d, lg)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ag.Run(gCtx)
	})
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", cfg.Health.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down HTTP server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("HTTP server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	err = g.Wait()

	if derr := d.Disconnect(context.Background()); derr != nil {
		lg.Warn("Printer disconnect error", zap.Error(derr))
	}
	return err
}

// mountAPI adds the print API under /v1/. An empty key leaves it open.
func mountAPI(mux *http.ServeMux, d handler.Dispatcher, kind ticket.Kind, key string, lg *zap.Logger) {
	api := http.NewServeMux()
	handler.NewHandler(d, kind, lg).Register(api)
	if key == "" {
		lg.Warn("Print API key not set, /v1/ accepts unauthenticated requests")
		mux.Handle("/v1/", api)
		return
	}
	mux.Handle("/v1/", httpmiddleware.Wrap(api, handler.APIKeyAuth(key)))
}

// writeTimeout covers the slowest print request: a connect that times out
// followed by a fallback held until its safety timeout.
func writeTimeout(cfg *Config) time.Duration {
	return cfg.Printer.ConnectTimeout + cfg.Fallback.Timeout + 10*time.Second
}

// NewSurface builds the fallback surface for cfg. Mode "none" returns nil.
func NewSurface(cfg FallbackConfig, lg *zap.Logger) (fallback.Surface, error) {
	switch cfg.Mode {
	case FallbackTerminal:
		return fallback.NewTerminal(os.Stdout), nil
	case FallbackPDF:
		if cfg.ChromePath == "" {
			if _, ok := fallback.FindChrome(); !ok {
				lg.Warn("Chrome not found, PDF fallback will fail until it is installed")
			}
		}
		return fallback.NewPDF(fallback.PDFConfig{Dir: cfg.Dir, ExecPath: cfg.ChromePath}, lg), nil
	case FallbackNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown fallback mode %q", cfg.Mode)
	}
}

// resolvePrinter returns addr, or the first printer found on the local /24
// when addr is empty.
func resolvePrinter(ctx context.Context, lg *zap.Logger, addr string) (string, error) {
	if addr != "" {
		return addr, nil
	}
	subnet, err := printer.LocalSubnet()
	if err != nil {
		return "", errors.Wrap(err, "detect subnet")
	}
	lg.Info("No printer configured, scanning", zap.String("subnet", subnet+".0/24"))
	found, err := printer.Discover(ctx, subnet, printer.DiscoverOptions{})
	if err != nil {
		return "", errors.Wrap(err, "discover printers")
	}
	if len(found) == 0 {
		return "", errors.Errorf("no printer answered on %s.0/24; set TICKET_PRINTER_ADDR", subnet)
	}
	lg.Info("Printer discovered", zap.Strings("found", found), zap.String("using", found[0]))
	return found[0], nil
}
