package quote

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradingdash/internal/instrument"
)

// echoDeriver records observations and maps them straight to instruments.
type echoDeriver struct {
	seen []instrument.Observation
}

func (e *echoDeriver) Derive(obs instrument.Observation, now time.Time) instrument.Instrument {
	e.seen = append(e.seen, obs)
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return instrument.Instrument{Symbol: obs.Symbol, Category: obs.Category, Price: obs.Price, LastUpdate: ts}
}

const envelopedBody = `{
  "success": true,
  "data": {
    "stocks": {
      "MSFT": {"price": "410.10", "timestamp": 1735787045000},
      "AAPL": {"price": 175.5},
      "TSLA": {"error": "Price unavailable", "symbol": "TSLA"}
    },
    "commodities": {
      "GOLD": {"price": "2001.25"},
      "OIL":  {"error": true}
    },
    "forex": {
      "EURUSD": {"price": "1.0845", "error": false},
      "GBPUSD": {"price": "1.2710", "error": ""}
    }
  }
}`

func TestParse_EnvelopeAndErrorMarkers(t *testing.T) {
	p, err := Parse([]byte(envelopedBody))
	require.NoError(t, err)
	require.True(t, p.Enveloped)

	total, failed := p.Counts()
	require.Equal(t, 7, total)
	require.Equal(t, 2, failed)

	d := &echoDeriver{}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	out := Normalize(p, d, now)
	require.Len(t, out, total-failed)

	got := make([]string, 0, len(out))
	for _, in := range out {
		got = append(got, string(in.Category)+":"+in.Symbol)
		require.True(t, in.Category.Valid())
	}
	require.Equal(t, []string{
		"STOCKS:AAPL", "STOCKS:MSFT",
		"COMMODITIES:GOLD",
		"FOREX:EURUSD", "FOREX:GBPUSD",
	}, got)

	require.Equal(t, "175.5", out[0].Price.String())
	require.True(t, out[0].LastUpdate.Equal(now))
	require.True(t, out[1].LastUpdate.Equal(time.UnixMilli(1735787045000).UTC()))
}

func TestParse_UnwrappedPayloadIsAccepted(t *testing.T) {
	p, err := Parse([]byte(`{"stocks": {"AAPL": {"price": "1"}}, "forex": null}`))
	require.NoError(t, err)
	require.False(t, p.Enveloped)
	require.Len(t, p.Stocks, 1)
	require.Nil(t, p.Forex)
}

func TestParse_EnvelopeFallsBackToWholeBody(t *testing.T) {
	// success without data, and data without success, both read the body itself.
	for _, body := range []string{
		`{"success": true, "data": null}`,
		`{"success": false, "data": {"stocks": {"AAPL": {"price": "1"}}}}`,
		`{"data": {"stocks": {"AAPL": {"price": "1"}}}}`,
	} {
		p, err := Parse([]byte(body))
		require.NoErrorf(t, err, "body=%s", body)
		require.Falsef(t, p.Enveloped, "body=%s", body)
		total, _ := p.Counts()
		require.Zerof(t, total, "body=%s", body)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`null`,
		`[]`,
		`"text"`,
		`{"stocks": 5}`,
		`{"stocks": ["AAPL"]}`,
		`{"stocks": {"AAPL": null}}`,
		`{"stocks": {"AAPL": 3}}`,
		`{"success": true, "data": [1, 2]}`,
		`{"stocks": {"AAPL": {"price": "1"}`,
	} {
		_, err := Parse([]byte(body))
		require.Errorf(t, err, "body=%q", body)
		require.Truef(t, errors.Is(err, ErrMalformed), "body=%q err=%v", body, err)
	}
}

func TestRawQuote_HasError(t *testing.T) {
	cases := map[string]bool{
		`{}`:                     false,
		`{"error": null}`:        false,
		`{"error": false}`:       false,
		`{"error": ""}`:          false,
		`{"error": 0}`:           false,
		`{"error": "boom"}`:      true,
		`{"error": true}`:        true,
		`{"error": 1}`:           true,
		`{"error": {"code": 5}}`: true,
		`{"error": []}`:          true,
	}
	for body, want := range cases {
		var q RawQuote
		require.NoError(t, json.Unmarshal([]byte(body), &q))
		require.Equalf(t, want, q.HasError(), "body=%s", body)
	}
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"175.50"`, "175.5", true},
		{`175.5`, "175.5", true},
		{`" 3.25 "`, "3.25", true},
		{`"12abc"`, "12", true},
		{`"1.0845 USD"`, "1.0845", true},
		{`1e3`, "1000", true},
		{`"abc"`, "0", false},
		{`""`, "0", false},
		{`null`, "0", false},
		{``, "0", false},
		{`true`, "0", false},
		{`"1e50000000"`, "0", false},
		{`1e50000000`, "0", false},
		{`1e-19`, "0", false},
		{`"1234567890123456789012345678901"`, "0", false},
		{`1e18`, "1000000000000000000", true},
	}
	for _, c := range cases {
		got, ok := parseDecimal(json.RawMessage(c.raw))
		require.Equalf(t, c.ok, ok, "raw=%s", c.raw)
		require.Equalf(t, c.want, got.String(), "raw=%s", c.raw)
	}
}

func TestParseTimestamp(t *testing.T) {
	sec := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.True(t, parseTimestamp(json.RawMessage(`1735787045`)).Equal(sec))
	require.True(t, parseTimestamp(json.RawMessage(`1735787045000`)).Equal(sec))
	require.True(t, parseTimestamp(json.RawMessage(`"1735787045000"`)).Equal(sec))
	require.True(t, parseTimestamp(json.RawMessage(`"2025-01-02T03:04:05Z"`)).Equal(sec))
	require.True(t, parseTimestamp(json.RawMessage(`"2025-01-02T04:04:05+01:00"`)).Equal(sec))

	require.True(t, parseTimestamp(json.RawMessage(`0`)).IsZero())
	require.True(t, parseTimestamp(json.RawMessage(`"yesterday"`)).IsZero())
	require.True(t, parseTimestamp(json.RawMessage(`null`)).IsZero())
	require.True(t, parseTimestamp(nil).IsZero())
	require.True(t, parseTimestamp(json.RawMessage(`9000000000000000000`)).IsZero())
	require.True(t, parseTimestamp(json.RawMessage(`1e300`)).IsZero())
}

func TestObservation_PreviousPriceAndVolume(t *testing.T) {
	var q RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"price": "10", "previousPrice": 0, "previousClose": "9.5", "volume": "1200.7"}`), &q))

	obs := q.Observation("X", instrument.Forex)
	require.Equal(t, instrument.Forex, obs.Category)
	require.NotNil(t, obs.PreviousPrice)
	require.Equal(t, "9.5", obs.PreviousPrice.String())
	require.NotNil(t, obs.Volume)
	require.Equal(t, int64(1200), *obs.Volume)

	var bare RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"price": "10"}`), &bare))
	obs = bare.Observation("X", instrument.Forex)
	require.Nil(t, obs.PreviousPrice)
	require.Nil(t, obs.Volume)
}

func TestObservation_OutOfRangeNumbersAreAbsent(t *testing.T) {
	var q RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"price": "1e50000000", "previousPrice": 1e-40, "volume": 1e30}`), &q))

	obs := q.Observation("AAPL", instrument.Stocks)
	require.True(t, obs.Price.IsZero())
	require.Nil(t, obs.PreviousPrice)
	require.Nil(t, obs.Volume)

	var big RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"price": "10", "volume": "9223372036854775808"}`), &big))
	require.Nil(t, big.Observation("AAPL", instrument.Stocks).Volume)

	var edge RawQuote
	require.NoError(t, json.Unmarshal([]byte(`{"price": "10", "volume": 9223372036854775807}`), &edge))
	vol := edge.Observation("AAPL", instrument.Stocks).Volume
	require.NotNil(t, vol)
	require.Equal(t, int64(9223372036854775807), *vol)
}

func TestNormalize_DoesNotMutatePayload(t *testing.T) {
	p, err := Parse([]byte(envelopedBody))
	require.NoError(t, err)
	before, _ := json.Marshal(p)

	Normalize(p, &echoDeriver{}, time.Now())

	after, _ := json.Marshal(p)
	require.JSONEq(t, string(before), string(after))
}
