package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"tradingdash/internal/instrument"
)

// ErrMalformed reports a body that cannot be processed into instruments.
var ErrMalformed = errors.New("malformed payload")

// RawQuote is one upstream entry. Fields are kept raw because the upstream
// mixes numbers and numeric strings.
type RawQuote struct {
	Price         json.RawMessage `json:"price"`
	PreviousPrice json.RawMessage `json:"previousPrice"`
	PreviousClose json.RawMessage `json:"previousClose"`
	Volume        json.RawMessage `json:"volume"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Error         json.RawMessage `json:"error"`
}

// HasError reports whether the upstream marked this entry as failed.
func (q RawQuote) HasError() bool { return truthy(q.Error) }

// Section maps symbols to their raw quotes.
type Section map[string]RawQuote

// Payload is the decoded instruments document.
type Payload struct {
	Stocks      Section
	Commodities Section
	Forex       Section
	// Enveloped is false when the body lacked a usable {success, data}
	// envelope and was read as the payload itself.
	Enveloped bool
}

// Section returns the section for c, or nil.
func (p Payload) Section(c instrument.Category) Section {
	switch c {
	case instrument.Stocks:
		return p.Stocks
	case instrument.Commodities:
		return p.Commodities
	case instrument.Forex:
		return p.Forex
	}
	return nil
}

// Counts returns the number of entries and how many of them are error-marked.
func (p Payload) Counts() (total, failed int) {
	for _, c := range instrument.Categories() {
		for _, q := range p.Section(c) {
			total++
			if q.HasError() {
				failed++
			}
		}
	}
	return total, failed
}

var sectionKeys = map[instrument.Category]string{
	instrument.Stocks:      "stocks",
	instrument.Commodities: "commodities",
	instrument.Forex:       "forex",
}

// Parse decodes an upstream body. A body shaped {success: true, data: {...}}
// is unwrapped; any other object is read as the payload directly.
func Parse(body []byte) (Payload, error) {
	top, err := decodeObject(body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var p Payload
	doc := top
	if data, ok := envelopeData(top); ok {
		doc, err = decodeObject(data)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: data: %v", ErrMalformed, err)
		}
		p.Enveloped = true
	}

	for _, c := range instrument.Categories() {
		key := sectionKeys[c]
		raw, ok := doc[key]
		if !ok || !truthy(raw) {
			continue
		}
		sec, err := decodeSection(raw)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		switch c {
		case instrument.Stocks:
			p.Stocks = sec
		case instrument.Commodities:
			p.Commodities = sec
		case instrument.Forex:
			p.Forex = sec
		}
	}
	return p, nil
}

func envelopeData(top map[string]json.RawMessage) (json.RawMessage, bool) {
	var success bool
	if err := json.Unmarshal(top["success"], &success); err != nil || !success {
		return nil, false
	}
	data, ok := top["data"]
	if !ok || !truthy(data) {
		return nil, false
	}
	return data, true
}

func decodeObject(b []byte) (map[string]json.RawMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, errors.New("not a JSON object")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSection(raw json.RawMessage) (Section, error) {
	entries, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	sec := make(Section, len(entries))
	for sym, rq := range entries {
		if _, err := decodeObject(rq); err != nil {
			return nil, fmt.Errorf("%s: %v", sym, err)
		}
		var q RawQuote
		if err := json.Unmarshal(rq, &q); err != nil {
			return nil, fmt.Errorf("%s: %v", sym, err)
		}
		sec[sym] = q
	}
	return sec, nil
}

// truthy mirrors how the dashboard treats loosely typed JSON flags: null,
// false, 0 and "" are unset, everything else is set.
func truthy(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return false
	}
	switch string(s) {
	case "null", "false", `""`:
		return false
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		f, err := strconv.ParseFloat(string(s), 64)
		return err != nil || f != 0
	}
	return true
}

func sortedSymbols(sec Section) []string {
	out := make([]string, 0, len(sec))
	for sym := range sec {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
