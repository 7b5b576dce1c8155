package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=pricing -destination=mock_http_client_test.go -source=pricing.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	// ErrStatus wraps non-2xx responses.
	ErrStatus = errors.New("unexpected status")
	// ErrTooLarge is returned for bodies over 64 KiB.
	ErrTooLarge = errors.New("response too large")
)

const maxBody = 64 << 10

// Client fetches the pricing banner, a plain string served at a fixed URL.
type Client struct {
	url        string
	httpClient HTTPClient
}

func New(url string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient}
}

// Get returns the body as text. A JSON string body is unquoted.
func (c *Client) Get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s: %w: %d", c.url, ErrStatus, res.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody+1))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if len(b) > maxBody {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBody)
	}
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unq string
		if err := json.Unmarshal([]byte(s), &unq); err == nil {
			return unq, nil
		}
	}
	return s, nil
}
