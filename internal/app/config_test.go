package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/fallback"
)

func defaults(t *testing.T) Config {
	t.Helper()
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipEnv:   true,
		SkipFiles: true,
		SkipFlags: true,
	})
	require.NoError(t, loader.Load())
	cfg.Agent.URL = "ws://orders.local/agent"
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, "$", cfg.Currency)
	assert.Equal(t, 42, cfg.Printer.Columns)
	assert.Equal(t, 5*time.Second, cfg.Printer.ConnectTimeout)
	assert.True(t, cfg.Printer.AutoConnect)
	assert.Zero(t, cfg.Printer.SendRetries)
	assert.Zero(t, cfg.Printer.Settle)
	assert.Equal(t, FallbackTerminal, cfg.Fallback.Mode)
	assert.Equal(t, 30*time.Second, cfg.Fallback.Timeout)
	assert.Equal(t, "combined", cfg.Agent.Kind)
	assert.Equal(t, 5*time.Second, cfg.Agent.ReconnectDelay)
	assert.Equal(t, uint(100000), cfg.Agent.DedupCapacity)
	assert.Equal(t, "0.0.0.0:8081", cfg.Health.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"NoURL", func(c *Config) { c.Agent.URL = "" }, "agent URL is required"},
		{"HTTPURL", func(c *Config) { c.Agent.URL = "http://orders.local" }, "ws:// or wss://"},
		{"BadFallback", func(c *Config) { c.Fallback.Mode = "fax" }, "unknown fallback mode"},
		{"BadKind", func(c *Config) { c.Agent.Kind = "dessert" }, "agent kind"},
		{"BadTimezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"Narrow", func(c *Config) { c.Printer.Columns = 10 }, "too narrow"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewSurface(t *testing.T) {
	lg := zap.NewNop()

	s, err := NewSurface(FallbackConfig{Mode: FallbackTerminal}, lg)
	require.NoError(t, err)
	assert.IsType(t, &fallback.Terminal{}, s)

	s, err = NewSurface(FallbackConfig{Mode: FallbackPDF, Dir: t.TempDir(), ChromePath: "/usr/bin/chromium"}, lg)
	require.NoError(t, err)
	assert.IsType(t, &fallback.PDF{}, s)

	s, err = NewSurface(FallbackConfig{Mode: FallbackNone}, lg)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewSurface(FallbackConfig{Mode: "fax"}, lg)
	assert.Error(t, err)
}
