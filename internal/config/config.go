package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Port              string   `mapstructure:"port"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec"`
	CORSOrigins       []string `mapstructure:"cors_origins"`
}

// Ticker binds a dashboard symbol to an upstream ticker.
type Ticker struct {
	Symbol string `mapstructure:"symbol"`
	Ticker string `mapstructure:"ticker"`
}

type Yahoo struct {
	Stocks               []Ticker `mapstructure:"stocks"`
	Commodities          []Ticker `mapstructure:"commodities"`
	Forex                []Ticker `mapstructure:"forex"`
	MaxSymbolsPerRequest int      `mapstructure:"max_symbols_per_request"`
	MaxConcurrency       int      `mapstructure:"max_concurrency"`
}

type Upstream struct {
	// Kind is "api" (instruments endpoint) or "yahoo".
	Kind                  string `mapstructure:"kind"`
	APIURL                string `mapstructure:"api_url"`
	MaxRequestsPerMinute  int    `mapstructure:"max_requests_per_minute"`
	MinRequestIntervalSec int    `mapstructure:"min_request_interval_sec"`
	Burst                 int    `mapstructure:"burst"`
	CacheTTLSeconds       int    `mapstructure:"cache_ttl_sec"`
	Yahoo                 Yahoo  `mapstructure:"yahoo"`
}

type Pricing struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type Poll struct {
	IntervalSec int `mapstructure:"interval_sec"`
}

type Derive struct {
	// PreviousPrice is "random" or "history".
	PreviousPrice string `mapstructure:"previous_price"`
	// Seed fixes the random stream; zero seeds from the clock.
	Seed uint64 `mapstructure:"seed"`
	// Policy is "heuristic" or "streak".
	Policy string `mapstructure:"policy"`
	// HistoryDepth is how many prices per symbol the history keeps.
	HistoryDepth int `mapstructure:"history_depth"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   Server   `mapstructure:"server"`
	Upstream Upstream `mapstructure:"upstream"`
	Pricing  Pricing  `mapstructure:"pricing"`
	Poll     Poll     `mapstructure:"poll"`
	Derive   Derive   `mapstructure:"derive"`
	Log      Log      `mapstructure:"log"`
}

const (
	KindAPI   = "api"
	KindYahoo = "yahoo"

	PreviousRandom  = "random"
	PreviousHistory = "history"

	PolicyHeuristic = "heuristic"
	PolicyStreak    = "streak"
)

func Default() Config {
	return Config{
		Server: Server{Port: "8081", RequestTimeoutSec: 10, CORSOrigins: []string{"*"}},
		Upstream: Upstream{
			Kind:   KindAPI,
			APIURL: "http://localhost:8080/api",
			Burst:  1,
			Yahoo: Yahoo{
				Stocks: []Ticker{
					{"AAPL", "AAPL"}, {"GOOGL", "GOOGL"}, {"MSFT", "MSFT"}, {"TSLA", "TSLA"}, {"NVDA", "NVDA"},
				},
				Commodities: []Ticker{
					{"GOLD", "GC=F"}, {"SILVER", "SI=F"}, {"OIL", "CL=F"}, {"NATGAS", "NG=F"}, {"COPPER", "HG=F"},
				},
				Forex: []Ticker{
					{"EURUSD", "EURUSD=X"}, {"GBPUSD", "GBPUSD=X"}, {"USDJPY", "USDJPY=X"}, {"USDCHF", "USDCHF=X"}, {"AUDUSD", "AUDUSD=X"},
				},
				MaxSymbolsPerRequest: 50,
				MaxConcurrency:       2,
			},
		},
		Pricing: Pricing{Enabled: true, URL: "http://localhost:8080/pricing"},
		Poll:    Poll{IntervalSec: 30},
		Derive:  Derive{PreviousPrice: PreviousRandom, Policy: PolicyHeuristic, HistoryDepth: 7},
		Log:     Log{Level: "info", Format: "json"},
	}
}

// Load layers defaults, an optional YAML/JSON file and the environment.
// An empty path looks for config.{yaml,json} in the working directory; a
// missing file is not an error. Environment variables use the DASHBOARD_
// prefix with dots replaced by underscores (DASHBOARD_UPSTREAM_API_URL);
// PORT and REQUEST_TIMEOUT_SEC are honoured too.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Default(), fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "DASHBOARD_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.request_timeout_sec", "DASHBOARD_SERVER_REQUEST_TIMEOUT_SEC", "REQUEST_TIMEOUT_SEC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout_sec", d.Server.RequestTimeoutSec)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("upstream.kind", d.Upstream.Kind)
	v.SetDefault("upstream.api_url", d.Upstream.APIURL)
	v.SetDefault("upstream.max_requests_per_minute", d.Upstream.MaxRequestsPerMinute)
	v.SetDefault("upstream.min_request_interval_sec", d.Upstream.MinRequestIntervalSec)
	v.SetDefault("upstream.burst", d.Upstream.Burst)
	v.SetDefault("upstream.cache_ttl_sec", d.Upstream.CacheTTLSeconds)
	v.SetDefault("upstream.yahoo.stocks", tickerMaps(d.Upstream.Yahoo.Stocks))
	v.SetDefault("upstream.yahoo.commodities", tickerMaps(d.Upstream.Yahoo.Commodities))
	v.SetDefault("upstream.yahoo.forex", tickerMaps(d.Upstream.Yahoo.Forex))
	v.SetDefault("upstream.yahoo.max_symbols_per_request", d.Upstream.Yahoo.MaxSymbolsPerRequest)
	v.SetDefault("upstream.yahoo.max_concurrency", d.Upstream.Yahoo.MaxConcurrency)

	v.SetDefault("pricing.enabled", d.Pricing.Enabled)
	v.SetDefault("pricing.url", d.Pricing.URL)
	v.SetDefault("poll.interval_sec", d.Poll.IntervalSec)
	v.SetDefault("derive.previous_price", d.Derive.PreviousPrice)
	v.SetDefault("derive.seed", d.Derive.Seed)
	v.SetDefault("derive.policy", d.Derive.Policy)
	v.SetDefault("derive.history_depth", d.Derive.HistoryDepth)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func tickerMaps(ts []Ticker) []map[string]any {
	out := make([]map[string]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, map[string]any{"symbol": t.Symbol, "ticker": t.Ticker})
	}
	return out
}

// Validate reports the first setting that cannot be served.
func (c Config) Validate() error {
	switch c.Upstream.Kind {
	case KindAPI:
		if strings.TrimSpace(c.Upstream.APIURL) == "" {
			return errors.New("upstream.api_url is required when upstream.kind=api")
		}
	case KindYahoo:
		y := c.Upstream.Yahoo
		if len(y.Stocks)+len(y.Commodities)+len(y.Forex) == 0 {
			return errors.New("upstream.yahoo lists no tickers")
		}
	default:
		return fmt.Errorf("unknown upstream.kind %q", c.Upstream.Kind)
	}
	switch c.Derive.PreviousPrice {
	case PreviousRandom, PreviousHistory:
	default:
		return fmt.Errorf("unknown derive.previous_price %q", c.Derive.PreviousPrice)
	}
	switch c.Derive.Policy {
	case PolicyHeuristic:
	case PolicyStreak:
		if c.Derive.HistoryDepth < 3 {
			return fmt.Errorf("derive.history_depth must be at least 3 for the streak policy, got %d", c.Derive.HistoryDepth)
		}
	default:
		return fmt.Errorf("unknown derive.policy %q", c.Derive.Policy)
	}
	if c.Poll.IntervalSec <= 0 {
		return fmt.Errorf("poll.interval_sec must be positive, got %d", c.Poll.IntervalSec)
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Pricing.Enabled && strings.TrimSpace(c.Pricing.URL) == "" {
		return errors.New("pricing.url is required when pricing.enabled=true")
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}
