package app

import (
	"net/url"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// Fallback modes.
const (
	FallbackTerminal = "terminal"
	FallbackPDF      = "pdf"
	FallbackNone     = "none"
)

// Config is the print agent configuration, loadable from environment
// variables (TICKET_ prefix), flags, or YAML config files.
type Config struct {
	Currency string `default:"$" usage:"Currency symbol printed before amounts"`
	// Timezone is the IANA zone ticket timestamps are printed in.
	Timezone string `default:"Local" usage:"Timezone for printed timestamps"`
	Printer  PrinterConfig
	Fallback FallbackConfig
	Agent    AgentConfig
	Health   HealthConfig
	API      APIConfig
	Graceful GracefulConfig
}

// PrinterConfig describes the network receipt printer.
type PrinterConfig struct {
	// Addr is discovered on the local /24 when empty.
	Addr           string        `usage:"Printer host[:port]; port defaults to 9100" flag:"printer-addr"`
	Name           string        `usage:"Printer display name"`
	ConnectTimeout time.Duration `default:"5s" usage:"Printer connect timeout" flag:"connect-timeout"`
	WriteTimeout   time.Duration `default:"10s" usage:"Printer write timeout"`
	Columns        int           `default:"42" usage:"Characters per line (42 for 80mm, 32 for 58mm)"`
	AutoConnect    bool          `default:"true" usage:"Connect automatically when a ticket arrives"`
	SendRetries    int           `default:"0" usage:"Send attempts repeated before falling back"`
	FeedLines      int           `default:"3" usage:"Lines fed before the cut"`
	NoCut          bool          `default:"false" usage:"Disable the paper cut command"`
	Settle         time.Duration `default:"0s" usage:"Pause after each job so the printer can drain its buffer"`
}

// FallbackConfig selects the surface used when the printer is unreachable.
type FallbackConfig struct {
	Mode       string        `default:"terminal" usage:"Fallback surface: terminal, pdf or none"`
	Dir        string        `default:"tickets" usage:"Output directory for PDF tickets"`
	Timeout    time.Duration `default:"30s" usage:"Safety timeout releasing the fallback surface"`
	ChromePath string        `usage:"Chrome/Chromium executable for PDF rendering"`
}

// AgentConfig is the order server connection.
type AgentConfig struct {
	URL            string        `usage:"Order server WebSocket URL" flag:"agent-url"`
	APIKey         string        `usage:"API key sent as X-Api-Key (TICKET_AGENT_API_KEY)"`
	AgentKey       string        `usage:"Agent identity announced on register"`
	Kind           string        `default:"combined" usage:"Ticket kind printed when an event names none"`
	ReconnectDelay time.Duration `default:"5s" usage:"Delay between reconnect attempts"`
	DedupCapacity  uint          `default:"100000" usage:"Expected number of distinct print events"`
	DedupFPR       float64       `default:"0.001" usage:"Duplicate filter false positive rate"`
}

// HealthConfig controls the probe server.
type HealthConfig struct {
	Addr     string        `default:"0.0.0.0:8081" usage:"Probe and print API listen address" flag:"health-addr"`
	Interval time.Duration `default:"10s" usage:"Health check interval"`
}

// APIConfig configures the local print API served next to the probes.
type APIConfig struct {
	// Key is required in X-Api-Key when set.
	Key string `usage:"Local print API key; empty disables authentication (TICKET_API_KEY)"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TICKET",
		Files:     []string{"config.yaml", "/etc/ticket-dispatch/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Agent.URL == "" {
		return errors.New("agent URL is required: set TICKET_AGENT_URL")
	}
	if u, err := url.Parse(c.Agent.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.Errorf("agent URL %q must be a ws:// or wss:// URL", c.Agent.URL)
	}
	switch c.Fallback.Mode {
	case FallbackTerminal, FallbackPDF, FallbackNone:
	default:
		return errors.Errorf("unknown fallback mode %q", c.Fallback.Mode)
	}
	if _, err := ticket.ParseKind(c.Agent.Kind); err != nil {
		return errors.Wrap(err, "agent kind")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrap(err, "timezone")
	}
	if c.Printer.Columns < 24 {
		return errors.Errorf("printer columns %d too narrow", c.Printer.Columns)
	}
	return nil
}
