package app

import (
	"fmt"
	"time"

	"tradingdash/internal/config"
	"tradingdash/internal/httpx"
	"tradingdash/internal/pricing"
	"tradingdash/internal/quote"
	"tradingdash/internal/signal"
	"tradingdash/internal/source"
	"tradingdash/internal/upstream"
	"tradingdash/internal/upstream/yahoo"
)

// Source builds the configured upstream wrapped with its rate limit and cache.
func Source(cfg config.Config, hc *httpx.Client, backend yahoo.Backend) (source.Source, error) {
	var s source.Source
	switch cfg.Upstream.Kind {
	case config.KindAPI:
		c, err := upstream.NewClient(
			upstream.WithBaseURL(cfg.Upstream.APIURL),
			upstream.WithHTTPClient(hc),
		)
		if err != nil {
			return nil, err
		}
		s = c
	case config.KindYahoo:
		y := cfg.Upstream.Yahoo
		s = yahoo.New(yahoo.Config{
			Stocks:               mappings(y.Stocks),
			Commodities:          mappings(y.Commodities),
			Forex:                mappings(y.Forex),
			MaxSymbolsPerRequest: y.MaxSymbolsPerRequest,
			MaxConcurrency:       y.MaxConcurrency,
		}, backend)
	default:
		return nil, fmt.Errorf("unknown upstream kind %q", cfg.Upstream.Kind)
	}
	return source.Wrap(s, source.Limits{
		MaxRequestsPerMinute: cfg.Upstream.MaxRequestsPerMinute,
		Burst:                cfg.Upstream.Burst,
		MinInterval:          time.Duration(cfg.Upstream.MinRequestIntervalSec) * time.Second,
		CacheTTL:             time.Duration(cfg.Upstream.CacheTTLSeconds) * time.Second,
	}), nil
}

func mappings(ts []config.Ticker) []yahoo.Mapping {
	out := make([]yahoo.Mapping, 0, len(ts))
	for _, t := range ts {
		out = append(out, yahoo.Mapping{Symbol: t.Symbol, Ticker: t.Ticker})
	}
	return out
}

// Deriver builds the instrument deriver for the configured previous-price
// mode and signal policy. Both history-backed settings share one Tracker.
func Deriver(cfg config.Config) *signal.Deriver {
	d := signal.NewDeriver(signal.NewRand(cfg.Derive.Seed))
	history := cfg.Derive.PreviousPrice == config.PreviousHistory
	streak := cfg.Derive.Policy == config.PolicyStreak
	if history || streak {
		d.Tracker = signal.NewTracker(cfg.Derive.HistoryDepth)
	}
	if history {
		d.Previous = signal.NewHistory(d.Tracker, d.Previous)
	}
	if streak {
		d.Policy = signal.Streak{}
	}
	return d
}

// Pricer returns nil when pricing is disabled.
func Pricer(cfg config.Config, hc *httpx.Client) *pricing.Client {
	if !cfg.Pricing.Enabled {
		return nil
	}
	return pricing.New(cfg.Pricing.URL, hc)
}

var (
	_ quote.Deriver = (*signal.Deriver)(nil)
	_ quote.Stager  = (*signal.Deriver)(nil)
)
