package signal

import (
	"github.com/shopspring/decimal"

	"tradingdash/internal/instrument"
)

// Move is what a Policy sees of one instrument.
type Move struct {
	Symbol        string
	ChangePercent decimal.Decimal
	// Recent holds the symbol's known prices, oldest first, ending with the
	// current one. It is empty when the current price is not positive.
	Recent []decimal.Decimal
}

// Policy decides whether an instrument carries a trading signal.
type Policy interface {
	Assign(m Move) instrument.Signal
}

const maxStrength = 5

var strongMove = decimal.NewFromInt(1)

// Heuristic is the placeholder dashboard policy: moves above 1% always signal
// in their own direction, smaller moves signal 30% of the time at random.
//
// Draw order for a weak move: Float64 (signal?), then Float64 (direction) and
// IntN(5) (strength) only when a signal is emitted.
type Heuristic struct {
	Rand Rand
}

func (h Heuristic) Assign(m Move) instrument.Signal {
	changePercent := m.ChangePercent
	abs := changePercent.Abs()
	if abs.GreaterThan(strongMove) {
		typ := instrument.Buy
		if changePercent.IsNegative() {
			typ = instrument.Sell
		}
		strength := abs.Floor().IntPart() + 1
		if strength > maxStrength {
			strength = maxStrength
		}
		return instrument.Signal{Active: true, Type: typ, Strength: int(strength)}
	}

	if h.Rand.Float64() <= 0.7 {
		return instrument.Signal{}
	}
	typ := instrument.Sell
	if h.Rand.Float64() > 0.5 {
		typ = instrument.Buy
	}
	return instrument.Signal{Active: true, Type: typ, Strength: h.Rand.IntN(maxStrength) + 1}
}

// streakRun is the number of prices that make a streak.
const streakRun = 3

var streakSteps = []struct {
	over     decimal.Decimal
	strength int
}{
	{decimal.NewFromInt(10), 5},
	{decimal.NewFromInt(7), 4},
	{decimal.NewFromInt(5), 3},
	{decimal.NewFromInt(2), 2},
}

// Streak signals BUY after prices rise strictly across the last three
// observations and SELL after they fall strictly. Strength follows the total
// move over those three prices: above 2, 5, 7 and 10 percent give 2 to 5.
// It draws no randomness.
type Streak struct{}

func (Streak) Assign(m Move) instrument.Signal {
	r := m.Recent
	if len(r) < streakRun {
		return instrument.Signal{}
	}
	first, mid, last := r[len(r)-3], r[len(r)-2], r[len(r)-1]

	var typ instrument.SignalType
	switch {
	case last.GreaterThan(mid) && mid.GreaterThan(first):
		typ = instrument.Buy
	case last.LessThan(mid) && mid.LessThan(first):
		typ = instrument.Sell
	default:
		return instrument.Signal{}
	}
	return instrument.Signal{Active: true, Type: typ, Strength: streakStrength(first, last)}
}

func streakStrength(from, to decimal.Decimal) int {
	if !from.IsPositive() {
		return 1
	}
	total := to.Sub(from).Div(from).Mul(hundred).Abs()
	for _, s := range streakSteps {
		if total.GreaterThan(s.over) {
			return s.strength
		}
	}
	return 1
}
