package signal

import (
	"github.com/shopspring/decimal"
)

// PreviousPricer supplies the prior tick for a symbol when the upstream did
// not report one.
type PreviousPricer interface {
	PreviousPrice(symbol string, price decimal.Decimal) decimal.Decimal
}

var (
	jitterLow   = decimal.RequireFromString("0.98")
	jitterWidth = decimal.RequireFromString("0.04")
)

// previousPricePlaces bounds the precision of synthesized prices.
const previousPricePlaces = 6

// RandomPrevious models a prior tick as price × U with U ~ Uniform[0.98, 1.02].
type RandomPrevious struct {
	Rand Rand
}

func (p RandomPrevious) PreviousPrice(_ string, price decimal.Decimal) decimal.Decimal {
	u := jitterLow.Add(jitterWidth.Mul(decimal.NewFromFloat(p.Rand.Float64())))
	return price.Mul(u).Round(previousPricePlaces)
}

// History reports the last committed price of a symbol as its previous
// price. Symbols without history are delegated to Fallback.
type History struct {
	Tracker  *Tracker
	Fallback PreviousPricer
}

func NewHistory(t *Tracker, fallback PreviousPricer) *History {
	return &History{Tracker: t, Fallback: fallback}
}

func (h *History) PreviousPrice(symbol string, price decimal.Decimal) decimal.Decimal {
	if prev, ok := h.Tracker.Last(symbol); ok {
		return prev
	}
	return h.Fallback.PreviousPrice(symbol, price)
}
