package source

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MinInterval enforces a minimum time between upstream calls.
// Concurrent callers wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	S        Source
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) Fetch(ctx context.Context) (json.RawMessage, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	body, err := m.S.Fetch(ctx)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return body, err
}

// TokenBucket is a token bucket limiter refilled at rate tokens per second
// up to capacity.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// PerMinute converts a requests-per-minute budget into a bucket.
func PerMinute(n, burst int) *TokenBucket {
	return NewTokenBucket(float64(n)/60, burst)
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		wait := time.Duration(deficit / tb.rate * float64(time.Second))
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Limited gates a Source with a TokenBucket.
type Limited struct {
	S  Source
	TB *TokenBucket
}

func (l *Limited) Name() string { return l.S.Name() }

func (l *Limited) Fetch(ctx context.Context) (json.RawMessage, error) {
	if l.TB != nil {
		if err := l.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return l.S.Fetch(ctx)
}
