package source

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Invalidator is implemented by sources that hold a cached body.
type Invalidator interface {
	Invalidate()
}

var _ Invalidator = (*Cached)(nil)

// Cached keeps the last successful body for TTL. Concurrent misses share one
// upstream call; a caller giving up does not cancel the shared call.
type Cached struct {
	S   Source
	TTL time.Duration
	// Timeout bounds the shared upstream call. Zero means 30s.
	Timeout time.Duration

	mu      sync.RWMutex
	body    json.RawMessage
	expires time.Time

	sf  singleflight.Group
	now func() time.Time
}

func (c *Cached) Name() string { return c.S.Name() }

func (c *Cached) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Cached) Fetch(ctx context.Context) (json.RawMessage, error) {
	if c.TTL <= 0 {
		return c.S.Fetch(ctx)
	}

	c.mu.RLock()
	body, expires := c.body, c.expires
	c.mu.RUnlock()
	if body != nil && c.clock().Before(expires) {
		return body, nil
	}

	ch := c.sf.DoChan("body", func() (any, error) {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		b, err := c.S.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.body = b
		c.expires = c.clock().Add(c.TTL)
		c.mu.Unlock()
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

// Invalidate drops the cached body.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.body = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}
