package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 30*time.Second, cfg.PollInterval())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
upstream:
  kind: yahoo
  yahoo:
    stocks:
      - symbol: AAPL
        ticker: AAPL
    forex:
      - symbol: EURUSD
        ticker: EURUSD=X
poll:
  interval_sec: 5
derive:
  previous_price: history
  policy: streak
`), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("DASHBOARD_POLL_INTERVAL_SEC", "7")
	t.Setenv("DASHBOARD_DERIVE_SEED", "42")
	t.Setenv("REQUEST_TIMEOUT_SEC", "3")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Server.Port)
	require.Equal(t, 3*time.Second, cfg.RequestTimeout())
	require.Equal(t, KindYahoo, cfg.Upstream.Kind)
	require.Equal(t, []Ticker{{Symbol: "AAPL", Ticker: "AAPL"}}, cfg.Upstream.Yahoo.Stocks)
	require.Equal(t, []Ticker{{Symbol: "EURUSD", Ticker: "EURUSD=X"}}, cfg.Upstream.Yahoo.Forex)
	require.Equal(t, 7, cfg.Poll.IntervalSec)
	require.Equal(t, PreviousHistory, cfg.Derive.PreviousPrice)
	require.Equal(t, uint64(42), cfg.Derive.Seed)
	require.Equal(t, PolicyStreak, cfg.Derive.Policy)
	require.Equal(t, 7, cfg.Derive.HistoryDepth)
	require.Equal(t, "http://localhost:8080/pricing", cfg.Pricing.URL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown kind":         func(c *Config) { c.Upstream.Kind = "ftp" },
		"api without url":      func(c *Config) { c.Upstream.APIURL = " " },
		"yahoo without ticker": func(c *Config) { c.Upstream.Kind = KindYahoo; c.Upstream.Yahoo = Yahoo{} },
		"unknown previous":     func(c *Config) { c.Derive.PreviousPrice = "magic" },
		"unknown policy":       func(c *Config) { c.Derive.Policy = "magic" },
		"shallow streak":       func(c *Config) { c.Derive.Policy = PolicyStreak; c.Derive.HistoryDepth = 2 },
		"zero poll":            func(c *Config) { c.Poll.IntervalSec = 0 },
		"negative poll":        func(c *Config) { c.Poll.IntervalSec = -1 },
		"no port":              func(c *Config) { c.Server.Port = "" },
		"pricing without url":  func(c *Config) { c.Pricing.URL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Pricing = Pricing{Enabled: false}
	require.NoError(t, cfg.Validate())
}
