package quote

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradingdash/internal/instrument"
)

// Deriver computes an instrument from an observation.
type Deriver interface {
	Derive(obs instrument.Observation, now time.Time) instrument.Instrument
}

// Session is a Deriver scoped to one refresh cycle. State it accumulates
// takes effect only on Commit.
type Session interface {
	Deriver
	Commit()
}

// Stager is implemented by derivers that carry state across cycles.
type Stager interface {
	Begin() Session
}

// Normalize flattens p into instruments, one per entry that is not
// error-marked. Sections are visited in category order and symbols in lexical
// order, so the draw sequence a Deriver sees is stable for a given payload.
func Normalize(p Payload, d Deriver, now time.Time) []instrument.Instrument {
	out := make([]instrument.Instrument, 0, 16)
	for _, c := range instrument.Categories() {
		sec := p.Section(c)
		for _, sym := range sortedSymbols(sec) {
			q := sec[sym]
			if q.HasError() {
				continue
			}
			out = append(out, d.Derive(q.Observation(sym, c), now))
		}
	}
	return out
}

// Observation parses the raw fields of q.
func (q RawQuote) Observation(symbol string, c instrument.Category) instrument.Observation {
	obs := instrument.Observation{
		Symbol:    symbol,
		Category:  c,
		Timestamp: parseTimestamp(q.Timestamp),
	}
	if v, ok := parseDecimal(q.Price); ok {
		obs.Price = v
	}
	for _, raw := range []json.RawMessage{q.PreviousPrice, q.PreviousClose} {
		if v, ok := parseDecimal(raw); ok && v.IsPositive() {
			obs.PreviousPrice = &v
			break
		}
	}
	if v, ok := parseDecimal(q.Volume); ok && !v.IsNegative() && !v.GreaterThan(maxVolume) {
		n := v.IntPart()
		obs.Volume = &n
	}
	return obs
}

// numericPrefix matches the leading number of a string, the way a lenient
// float parser reads "175.50 USD" as 175.50.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Numbers outside these bounds are treated as unparsable. Rounding a decimal
// with an extreme exponent materializes the full power of ten.
const (
	maxNumberLen = 64
	maxExponent  = 18
	maxDigits    = 30
)

var maxVolume = decimal.NewFromInt(math.MaxInt64)

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return decimal.Zero, false
		}
		s = numericPrefix.FindString(strings.TrimSpace(str))
		if s == "" {
			return decimal.Zero, false
		}
	}
	if len(s) > maxNumberLen {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if e := v.Exponent(); e > maxExponent || e < -maxExponent || v.NumDigits() > maxDigits {
		return decimal.Zero, false
	}
	return v, true
}

// parseTimestamp accepts epoch seconds or milliseconds, as a number or a
// numeric string, and RFC 3339 strings. Anything else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(str)); err == nil {
			return t.UTC()
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f >= math.MaxInt64 {
			return time.Time{}
		}
		n = int64(f)
	}
	return parseEpochMaybeMillis(n)
}

func parseEpochMaybeMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	t := time.Unix(v, 0).UTC()
	if v > 1_000_000_000_000 { // ms
		t = time.UnixMilli(v).UTC()
	}
	// Years past 9999 cannot be encoded as RFC 3339.
	if t.Year() > 9999 {
		return time.Time{}
	}
	return t
}
