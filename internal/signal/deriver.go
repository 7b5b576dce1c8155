package signal

import (
	"time"

	"github.com/shopspring/decimal"

	"tradingdash/internal/instrument"
	"tradingdash/internal/quote"
)

const (
	changePercentPlaces = 4
	maxSyntheticVolume  = 1_000_000
)

var hundred = decimal.NewFromInt(100)

// Deriver turns parsed observations into instruments. All nondeterminism
// flows through its collaborators, so a Deriver built from fixed stubs is
// fully deterministic.
type Deriver struct {
	Rand     Rand
	Previous PreviousPricer
	Policy   Policy
	// Tracker, when set, remembers derived prices for History and Streak.
	Tracker *Tracker
}

// NewDeriver wires the default collaborators around r: random previous
// prices and the heuristic policy.
func NewDeriver(r Rand) *Deriver {
	return &Deriver{Rand: r, Previous: RandomPrevious{Rand: r}, Policy: Heuristic{Rand: r}}
}

// Derive builds one instrument and records its price immediately.
func (d *Deriver) Derive(obs instrument.Observation, now time.Time) instrument.Instrument {
	in := d.derive(obs, now, d.recent(obs.Symbol))
	if d.Tracker != nil && in.Price.IsPositive() {
		d.Tracker.Record(in.Symbol, in.Price)
	}
	return in
}

// Begin starts a cycle whose prices reach the Tracker only on Commit.
func (d *Deriver) Begin() quote.Session {
	return &Cycle{d: d, pending: make(map[string][]decimal.Decimal)}
}

func (d *Deriver) recent(symbol string) []decimal.Decimal {
	if d.Tracker == nil {
		return nil
	}
	return d.Tracker.Recent(symbol)
}

// derive builds one instrument. now stamps observations that carry no
// timestamp of their own; history is what is known of the symbol so far.
func (d *Deriver) derive(obs instrument.Observation, now time.Time, history []decimal.Decimal) instrument.Instrument {
	price := obs.Price
	if price.IsNegative() {
		price = decimal.Zero
	}

	var prev decimal.Decimal
	if obs.PreviousPrice != nil && obs.PreviousPrice.IsPositive() {
		prev = *obs.PreviousPrice
	} else {
		prev = d.Previous.PreviousPrice(obs.Symbol, price)
	}

	change := price.Sub(prev)
	pct := decimal.Zero
	if !prev.IsZero() {
		pct = change.Div(prev).Mul(hundred)
	}

	var volume int64
	m := Move{Symbol: obs.Symbol, ChangePercent: pct}
	if price.IsPositive() {
		m.Recent = append(history, price)
	}
	sig := d.Policy.Assign(m)
	if obs.Volume != nil && *obs.Volume >= 0 {
		volume = *obs.Volume
	} else {
		volume = int64(d.Rand.IntN(maxSyntheticVolume))
	}

	ts := obs.Timestamp
	if ts.IsZero() {
		ts = now
	}

	return instrument.Instrument{
		Symbol:        obs.Symbol,
		Name:          instrument.Name(obs.Symbol),
		Price:         price,
		PreviousPrice: prev,
		Change:        change,
		ChangePercent: pct.Round(changePercentPlaces),
		Category:      obs.Category,
		Trend:         instrument.TrendOf(change),
		Volume:        volume,
		LastUpdate:    ts,
	}.WithSignal(sig)
}

// Cycle derives against the committed history and holds the prices it sees
// until Commit. It is not safe for concurrent use.
type Cycle struct {
	d       *Deriver
	pending map[string][]decimal.Decimal
	order   []string
}

func (c *Cycle) Derive(obs instrument.Observation, now time.Time) instrument.Instrument {
	history := append(c.d.recent(obs.Symbol), c.pending[obs.Symbol]...)
	in := c.d.derive(obs, now, history)
	if in.Price.IsPositive() {
		if _, ok := c.pending[in.Symbol]; !ok {
			c.order = append(c.order, in.Symbol)
		}
		c.pending[in.Symbol] = append(c.pending[in.Symbol], in.Price)
	}
	return in
}

// Commit records the cycle's prices. Calling it again is a no-op.
func (c *Cycle) Commit() {
	if c.d.Tracker != nil {
		for _, sym := range c.order {
			for _, p := range c.pending[sym] {
				c.d.Tracker.Record(sym, p)
			}
		}
	}
	c.pending = make(map[string][]decimal.Decimal)
	c.order = nil
}
