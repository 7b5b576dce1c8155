package board

import (
	"time"

	"github.com/shopspring/decimal"

	"tradingdash/internal/instrument"
)

// Fallback returns the fixed instrument set shown when live data is
// unavailable, stamped with now.
func Fallback(now time.Time) []instrument.Instrument {
	d := decimal.RequireFromString
	return []instrument.Instrument{
		instrument.Instrument{
			Symbol:        "AAPL",
			Name:          "Apple Inc.",
			Price:         d("175.50"),
			PreviousPrice: d("174.20"),
			Change:        d("1.30"),
			ChangePercent: d("0.75"),
			Category:      instrument.Stocks,
			Trend:         instrument.Up,
			Volume:        45_000_000,
			LastUpdate:    now,
		}.WithSignal(instrument.Signal{Active: true, Type: instrument.Buy, Strength: 4}),
		instrument.Instrument{
			Symbol:        "GOLD",
			Name:          "Gold Spot",
			Price:         d("2001.25"),
			PreviousPrice: d("1998.80"),
			Change:        d("2.45"),
			ChangePercent: d("0.12"),
			Category:      instrument.Commodities,
			Trend:         instrument.Up,
			Volume:        125_000,
			LastUpdate:    now,
		}.WithSignal(instrument.Signal{Active: true, Type: instrument.Buy, Strength: 3}),
		{
			Symbol:        "EURUSD",
			Name:          "Euro/US Dollar",
			Price:         d("1.0845"),
			PreviousPrice: d("1.0820"),
			Change:        d("0.0025"),
			ChangePercent: d("0.23"),
			Category:      instrument.Forex,
			Trend:         instrument.Up,
			Volume:        2_500_000,
			LastUpdate:    now,
		},
	}
}
