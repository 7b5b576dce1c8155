package signal

import (
	"sync"

	"github.com/shopspring/decimal"
)

// DefaultDepth is how many prices a Tracker keeps per symbol.
const DefaultDepth = 7

// Tracker keeps the most recent prices per symbol, oldest first.
type Tracker struct {
	depth int

	mu     sync.RWMutex
	prices map[string][]decimal.Decimal
}

// NewTracker keeps depth prices per symbol; depth <= 0 means DefaultDepth.
func NewTracker(depth int) *Tracker {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Tracker{depth: depth, prices: make(map[string][]decimal.Decimal)}
}

// Recent returns a copy of the prices kept for symbol.
func (t *Tracker) Recent(symbol string) []decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ps := t.prices[symbol]
	if len(ps) == 0 {
		return nil
	}
	out := make([]decimal.Decimal, len(ps))
	copy(out, ps)
	return out
}

func (t *Tracker) Last(symbol string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ps := t.prices[symbol]
	if len(ps) == 0 {
		return decimal.Zero, false
	}
	return ps[len(ps)-1], true
}

// Record appends price, dropping the oldest once depth is reached.
func (t *Tracker) Record(symbol string, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps := t.prices[symbol]
	if len(ps) < t.depth {
		t.prices[symbol] = append(ps, price)
		return
	}
	copy(ps, ps[1:])
	ps[len(ps)-1] = price
}
