// Package api provides the HTTP client for the query backend.
package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/rs/zerolog"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

// HTTPDoer is the subset of tls_client.HttpClient the client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientInterface defines the operations front-ends need from the backend client
type ClientInterface interface {
	Query(ctx context.Context, text string) (*models.QueryResponse, error)
	Ping(ctx context.Context) error
	Endpoint() string
	BaseURL() string
	Close()
	IsClosed() bool
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Client posts queries to the backend's /query endpoint
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	timeout    time.Duration
	profile    profiles.ClientProfile
	log        zerolog.Logger
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets the backend base URL (scheme://host[:port])
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout bounds each query. Zero waits indefinitely.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the TLS client, mostly for tests
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithClientProfile sets the TLS fingerprint used by the default transport
func WithClientProfile(profile profiles.ClientProfile) ClientOption {
	return func(c *Client) {
		c.profile = profile
	}
}

// WithLogger attaches a structured logger
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL: models.DefaultBaseURL,
		profile: profiles.Chrome_120,
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	client.baseURL = normalizeBaseURL(client.baseURL)
	if client.baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if !strings.HasPrefix(client.baseURL, "http://") && !strings.HasPrefix(client.baseURL, "https://") {
		return nil, fmt.Errorf("base URL must start with http:// or https://: %q", client.baseURL)
	}

	if client.httpClient == nil {
		// Per-request contexts carry the timeout, so the transport itself never gives up.
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(0),
			tls_client.WithClientProfile(client.profile),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// normalizeBaseURL trims whitespace and trailing slashes
func normalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoint returns the full URL queries are posted to
func (c *Client) Endpoint() string {
	return c.baseURL + models.PathQuery
}

// Timeout returns the per-query timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Close marks the client closed and releases idle connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if idle, ok := c.httpClient.(interface{ CloseIdleConnections() }); ok {
		idle.CloseIdleConnections()
	}
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Ping checks that the backend answers at all. Any HTTP status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.IsClosed() {
		return apierrors.ErrClientClosed
	}

	endpoint := c.baseURL + models.PathHealth
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &apierrors.TimeoutError{Message: "ping " + endpoint, Cause: ctx.Err()}
		}
		return apierrors.NewNetworkErrorWithEndpoint("ping", endpoint, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.log.Debug().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("ping")
	return nil
}
