package board

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"tradingdash/internal/instrument"
)

// Snapshot is the dashboard state produced by one refresh cycle.
type Snapshot struct {
	RefreshID        string                  `json:"refreshId,omitempty"`
	Instruments      []instrument.Instrument `json:"instruments"`
	ActiveSignals    int                     `json:"activeSignals"`
	TotalInstruments int                     `json:"totalInstruments"`
	LastUpdate       time.Time               `json:"lastUpdate"`
	// Error is the user-facing message of a failed cycle.
	Error    string `json:"error,omitempty"`
	Fallback bool   `json:"fallback"`
}

// Sort orders instruments by category priority, then by symbol using an
// English collator. Equal keys keep their input order.
func Sort(in []instrument.Instrument) {
	col := collate.New(language.English)
	sort.SliceStable(in, func(i, j int) bool {
		pi, pj := in[i].Category.Priority(), in[j].Category.Priority()
		if pi != pj {
			return pi < pj
		}
		if c := col.CompareString(in[i].Symbol, in[j].Symbol); c != 0 {
			return c < 0
		}
		return in[i].Symbol < in[j].Symbol
	})
}

// Summarize sorts in place and computes the aggregate counters. The returned
// snapshot shares the slice.
func Summarize(in []instrument.Instrument, now time.Time) Snapshot {
	if in == nil {
		in = []instrument.Instrument{}
	}
	Sort(in)
	return Snapshot{
		Instruments:      in,
		ActiveSignals:    len(WithSignals(in)),
		TotalInstruments: len(in),
		LastUpdate:       now,
	}
}

// ByCategory returns the instruments in category c, preserving order.
func ByCategory(in []instrument.Instrument, c instrument.Category) []instrument.Instrument {
	out := make([]instrument.Instrument, 0, len(in))
	for _, v := range in {
		if v.Category == c {
			out = append(out, v)
		}
	}
	return out
}

// WithSignals returns the instruments carrying a signal, preserving order.
func WithSignals(in []instrument.Instrument) []instrument.Instrument {
	out := make([]instrument.Instrument, 0, len(in))
	for _, v := range in {
		if v.HasSignal {
			out = append(out, v)
		}
	}
	return out
}

// Alerts returns the signalled instruments of at least minStrength,
// strongest first. Ties keep their input order.
func Alerts(in []instrument.Instrument, minStrength int) []instrument.Instrument {
	out := make([]instrument.Instrument, 0, len(in))
	for _, v := range in {
		if v.HasSignal && v.SignalStrength >= minStrength {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SignalStrength > out[j].SignalStrength })
	return out
}
