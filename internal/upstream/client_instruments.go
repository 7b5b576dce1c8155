package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("unexpected status")
	// ErrInvalidJSON is returned when the body is not a JSON document.
	ErrInvalidJSON = errors.New("response is not valid JSON")
)

// Fetch retrieves the raw instruments document from GET {baseURL}/instruments.
// The body is returned unparsed after checking it is valid JSON.
func (c *Client) Fetch(ctx context.Context) (json.RawMessage, error) {
	url := c.baseURL + "/instruments"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, res.Body, 4<<10)
		return nil, fmt.Errorf("GET %s: %w: %d", url, ErrStatus, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxBody)
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(body), nil
}
