package source

import (
	"context"
	"encoding/json"
	"time"
)

// Source returns one raw instruments document per call.
//
//go:generate mockgen -package=dashboard -destination=../dashboard/mock_source_test.go tradingdash/internal/source Source
type Source interface {
	Name() string
	Fetch(ctx context.Context) (json.RawMessage, error)
}

// Func adapts a function to Source.
type Func struct {
	Label string
	F     func(ctx context.Context) (json.RawMessage, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Fetch(ctx context.Context) (json.RawMessage, error) { return f.F(ctx) }

// Limits configures the decorators applied by Wrap.
type Limits struct {
	MaxRequestsPerMinute int
	Burst                int
	MinInterval          time.Duration
	CacheTTL             time.Duration
}

// Wrap gates s with a token bucket when a per-minute budget is set, otherwise
// with a minimum interval, and puts a TTL cache in front when CacheTTL > 0.
func Wrap(s Source, l Limits) Source {
	if l.MaxRequestsPerMinute > 0 {
		s = &Limited{S: s, TB: PerMinute(l.MaxRequestsPerMinute, l.Burst)}
	} else if l.MinInterval > 0 {
		s = &MinInterval{S: s, Interval: l.MinInterval}
	}
	if l.CacheTTL > 0 {
		s = &Cached{S: s, TTL: l.CacheTTL}
	}
	return s
}
