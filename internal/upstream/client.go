package upstream

import (
	"errors"
	"net/http"
	"strings"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=upstream_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNoBaseURL is returned by NewClient when no base URL was configured.
var ErrNoBaseURL = errors.New("upstream: missing base URL")

// Client talks to the instruments pricing API.
type Client struct {
	// baseURL is the API root; /instruments is appended to it.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header is sent with each request.
	header http.Header
	// maxBody caps the accepted response size.
	maxBody int64
}

// ClientOption is a configuration option for Client.
type ClientOption func(*Client)

// WithBaseURL sets the API root.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithMaxBodyBytes caps the response size read from the API.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// NewClient creates a client. A base URL is required.
func NewClient(options ...ClientOption) (*Client, error) {
	var client = &Client{
		httpClient: http.DefaultClient,
		header:     http.Header{},
		maxBody:    8 << 20,
	}
	for _, option := range options {
		option(client)
	}
	if client.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	return client, nil
}

// Name identifies the source in logs.
func (c *Client) Name() string { return "api" }
