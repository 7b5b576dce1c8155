package instrument

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed names.yaml
var namesYAML []byte

// names is built once from the embedded table and never written afterwards.
var names = mustLoadNames(namesYAML)

// Name resolves the display name for symbol, falling back to the symbol.
func Name(symbol string) string {
	if n, ok := names[symbol]; ok && n != "" {
		return n
	}
	return symbol
}

// loadNames flattens the per-category name document into a single lookup.
func loadNames(b []byte) (map[string]string, error) {
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse names: %w", err)
	}
	out := make(map[string]string)
	for section, entries := range doc {
		if _, ok := ParseCategory(section); !ok {
			return nil, fmt.Errorf("parse names: unknown section %q", section)
		}
		for sym, name := range entries {
			if prev, dup := out[sym]; dup && prev != name {
				return nil, fmt.Errorf("parse names: %s listed twice", sym)
			}
			out[sym] = name
		}
	}
	return out, nil
}

func mustLoadNames(b []byte) map[string]string {
	m, err := loadNames(b)
	if err != nil {
		panic(err)
	}
	return m
}
