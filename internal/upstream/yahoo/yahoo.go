package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradingdash/internal/instrument"
)

// Quote is the Yahoo Finance quote shape; only the regular-market fields are read.
type Quote = finance.Quote

// Backend fetches quotes for a batch of tickers.
type Backend interface {
	Quotes(ctx context.Context, tickers []string) ([]Quote, error)
}

// FinanceBackend queries Yahoo Finance through piquette/finance-go.
type FinanceBackend struct{}

func (FinanceBackend) Quotes(ctx context.Context, tickers []string) ([]Quote, error) {
	iter := quote.List(tickers)
	out := make([]Quote, 0, len(tickers))
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q := iter.Quote(); q != nil {
			out = append(out, *q)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Mapping binds a dashboard symbol to the Yahoo ticker it is priced from.
type Mapping struct {
	Symbol string `mapstructure:"symbol"`
	Ticker string `mapstructure:"ticker"`
}

// Config lists the instruments to price per category.
type Config struct {
	Stocks               []Mapping
	Commodities          []Mapping
	Forex                []Mapping
	MaxSymbolsPerRequest int
	MaxConcurrency       int
}

func (c Config) mappings(cat instrument.Category) []Mapping {
	switch cat {
	case instrument.Stocks:
		return c.Stocks
	case instrument.Commodities:
		return c.Commodities
	case instrument.Forex:
		return c.Forex
	}
	return nil
}

// ErrNoTickers is returned when no instruments are configured.
var ErrNoTickers = errors.New("yahoo: no tickers configured")

// Source builds an enveloped instruments document from Yahoo quotes.
type Source struct {
	cfg     Config
	backend Backend
}

// New returns a Source. A nil backend means FinanceBackend.
func New(cfg Config, backend Backend) *Source {
	if backend == nil {
		backend = FinanceBackend{}
	}
	if cfg.MaxSymbolsPerRequest <= 0 {
		cfg.MaxSymbolsPerRequest = 50
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}
	cfg.Stocks = withTickers(cfg.Stocks)
	cfg.Commodities = withTickers(cfg.Commodities)
	cfg.Forex = withTickers(cfg.Forex)
	return &Source{cfg: cfg, backend: backend}
}

// withTickers defaults an empty ticker to the symbol itself.
func withTickers(ms []Mapping) []Mapping {
	out := make([]Mapping, len(ms))
	for i, m := range ms {
		if m.Ticker == "" {
			m.Ticker = m.Symbol
		}
		out[i] = m
	}
	return out
}

func (s *Source) Name() string { return "yahoo" }

type entry struct {
	Price         string `json:"price,omitempty"`
	PreviousPrice string `json:"previousPrice,omitempty"`
	Volume        *int64 `json:"volume,omitempty"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Fetch quotes every configured ticker and returns
// {"success":true,"data":{"stocks":{...},...}}. A ticker absent from the
// response, or whose batch failed, becomes an error-marked entry. Fetch fails
// only when every batch fails.
func (s *Source) Fetch(ctx context.Context) (json.RawMessage, error) {
	tickers := s.tickers()
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	var (
		mu      sync.Mutex
		byTick  = make(map[string]Quote, len(tickers))
		failed  = make(map[string]error)
		errs    []error
		batches = chunkStrings(tickers, s.cfg.MaxSymbolsPerRequest)
	)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, batch := range batches {
		g.Go(func() error {
			qs, err := s.backend.Quotes(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				for _, t := range batch {
					failed[t] = err
				}
				return nil
			}
			for _, q := range qs {
				byTick[q.Symbol] = q
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(batches) {
		return nil, fmt.Errorf("yahoo: all batches failed: %w", errors.Join(errs...))
	}

	data := make(map[string]map[string]entry, 3)
	for _, cat := range instrument.Categories() {
		ms := s.cfg.mappings(cat)
		if len(ms) == 0 {
			continue
		}
		sec := make(map[string]entry, len(ms))
		for _, m := range ms {
			sec[m.Symbol] = toEntry(m.Ticker, byTick, failed)
		}
		data[sectionKey(cat)] = sec
	}

	return json.Marshal(struct {
		Success bool                        `json:"success"`
		Data    map[string]map[string]entry `json:"data"`
	}{Success: true, Data: data})
}

func toEntry(ticker string, byTick map[string]Quote, failed map[string]error) entry {
	if err, ok := failed[ticker]; ok {
		return entry{Error: err.Error()}
	}
	q, ok := byTick[ticker]
	if !ok || q.RegularMarketPrice <= 0 {
		return entry{Error: "no quote for " + ticker}
	}
	e := entry{
		Price:     decimal.NewFromFloat(q.RegularMarketPrice).String(),
		Timestamp: int64(q.RegularMarketTime),
	}
	if q.RegularMarketPreviousClose > 0 {
		e.PreviousPrice = decimal.NewFromFloat(q.RegularMarketPreviousClose).String()
	}
	v := int64(q.RegularMarketVolume)
	e.Volume = &v
	return e
}

// tickers returns the configured tickers, deduplicated, in config order.
func (s *Source) tickers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cat := range instrument.Categories() {
		for _, m := range s.cfg.mappings(cat) {
			if _, dup := seen[m.Ticker]; dup {
				continue
			}
			seen[m.Ticker] = struct{}{}
			out = append(out, m.Ticker)
		}
	}
	return out
}

func sectionKey(c instrument.Category) string {
	switch c {
	case instrument.Stocks:
		return "stocks"
	case instrument.Commodities:
		return "commodities"
	case instrument.Forex:
		return "forex"
	}
	return ""
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) <= size {
		return [][]string{in}
	}
	var out [][]string
	for i := 0; i < len(in); i += size {
		j := min(i+size, len(in))
		out = append(out, in[i:j])
	}
	return out
}
