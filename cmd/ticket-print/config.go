package main

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
)

// Config holds the CLI options, loadable from flags or TICKET_ environment
// variables.
type Config struct {
	Kind     string   `default:"combined" usage:"Ticket kind: kitchen, bar, precheck, closing or combined"`
	Input    []string `usage:"Snapshot files (.json or .json.gz); positional arguments are appended" flag:"in"`
	Printer  string   `usage:"Printer host[:port]; without it tickets go to the fallback surface" flag:"printer"`
	Discover bool     `default:"false" usage:"List printers on the local /24 and exit"`

	Columns        int           `default:"42" usage:"Characters per line"`
	Currency       string        `default:"$" usage:"Currency symbol"`
	ConnectTimeout time.Duration `default:"5s" usage:"Printer connect timeout" flag:"connect-timeout"`
	Retries        int           `default:"0" usage:"Send attempts repeated before falling back"`

	Fallback        string        `default:"terminal" usage:"Fallback surface: terminal, pdf or none"`
	PDFDir          string        `default:"tickets" usage:"Output directory for PDF tickets" flag:"pdf-dir"`
	FallbackTimeout time.Duration `default:"30s" usage:"Fallback safety timeout" flag:"fallback-timeout"`

	Verbose bool `default:"false" usage:"Debug logging"`
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TICKET",
		SkipFiles: true,
		Args:      args,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.Input = append(cfg.Input, loader.Flags().Args()...)
	if !cfg.Discover && len(cfg.Input) == 0 {
		return nil, errors.New("no snapshot files given")
	}
	return &cfg, nil
}
