package instrument

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the payload section an instrument came from.
type Category string

const (
	Stocks      Category = "STOCKS"
	Commodities Category = "COMMODITIES"
	Forex       Category = "FOREX"
)

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{Stocks, Commodities, Forex}
}

// Priority orders categories for display. Unknown categories sort last.
func (c Category) Priority() int {
	switch c {
	case Stocks:
		return 1
	case Commodities:
		return 2
	case Forex:
		return 3
	default:
		return 99
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool { return c.Priority() != 99 }

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}

type Trend string

const (
	Up      Trend = "UP"
	Down    Trend = "DOWN"
	Neutral Trend = "NEUTRAL"
)

// TrendOf classifies a price change.
func TrendOf(change decimal.Decimal) Trend {
	switch change.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Neutral
	}
}

type SignalType string

const (
	Buy  SignalType = "BUY"
	Sell SignalType = "SELL"
)

// Signal is the outcome of a signal policy. Type and Strength are only
// meaningful when Active is true.
type Signal struct {
	Active   bool
	Type     SignalType
	Strength int
}

// Instrument is one row of the dashboard. Prices are decimals and marshal as
// JSON strings.
type Instrument struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	PreviousPrice  decimal.Decimal `json:"previousPrice"`
	Change         decimal.Decimal `json:"change"`
	ChangePercent  decimal.Decimal `json:"changePercent"`
	Category       Category        `json:"category"`
	HasSignal      bool            `json:"hasSignal"`
	SignalType     SignalType      `json:"signalType,omitempty"`
	SignalStrength int             `json:"signalStrength,omitempty"`
	Trend          Trend           `json:"trend"`
	Volume         int64           `json:"volume"`
	LastUpdate     time.Time       `json:"lastUpdate"`
}

// WithSignal returns a copy of in carrying sig. An inactive signal clears
// the type and strength.
func (in Instrument) WithSignal(sig Signal) Instrument {
	in.HasSignal = sig.Active
	in.SignalType = ""
	in.SignalStrength = 0
	if sig.Active {
		in.SignalType = sig.Type
		in.SignalStrength = sig.Strength
	}
	return in
}

// Observation is a single parsed upstream quote, before any derived field is
// computed.
type Observation struct {
	Symbol   string
	Category Category
	Price    decimal.Decimal
	// PreviousPrice is set when the upstream reported a prior price.
	PreviousPrice *decimal.Decimal
	// Volume is set when the upstream reported a traded volume.
	Volume    *int64
	Timestamp time.Time
}
