// Package upstream is the shared HTTP plumbing of the metadata providers:
// one rate limiter, circuit breaker and timeout per provider, no retries.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lepinkainen/shelfnotes/internal/metrics"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRatePerSecond = 5
	maxErrorBody         = 512
	maxResponseBody      = 8 << 20
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Provider string
	Code     int
	Path     string
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d for %s: %s", e.Provider, e.Code, e.Path, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

// Client performs JSON GET requests against a single provider.
type Client struct {
	name       string
	httpClient HTTPDoer
	limiter    *Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	timeout    time.Duration
}

// Option is a functional option for configuring the Client.
type Option func(*options)

type options struct {
	httpClient HTTPDoer
	rate       float64
	burst      int
	timeout    time.Duration
	breaker    BreakerSettings
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithRateLimit sets the outbound request rate. Zero disables limiting.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.rate = requestsPerSecond
		o.burst = burst
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreaker configures the circuit breaker.
func WithBreaker(s BreakerSettings) Option {
	return func(o *options) {
		o.breaker = s
	}
}

// New creates a client for the provider called name.
func New(name string, opts ...Option) *Client {
	o := options{
		httpClient: &http.Client{},
		rate:       defaultRatePerSecond,
		burst:      defaultRatePerSecond,
		timeout:    defaultTimeout,
		breaker:    DefaultBreakerSettings,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		name:       name,
		httpClient: o.httpClient,
		limiter:    NewLimiter(name, o.rate, o.burst),
		breaker:    newBreaker(name, o.breaker),
		timeout:    o.timeout,
	}
}

// Name returns the provider name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// GetJSON fetches endpoint and decodes the JSON body into target.
func (c *Client) GetJSON(ctx context.Context, endpoint string, target any) error {
	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// GetBytes fetches endpoint and returns the raw body.
func (c *Client) GetBytes(ctx context.Context, endpoint string) ([]byte, error) {
	return c.get(ctx, endpoint, "*/*")
}

func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var body []byte
	var err error
	if c.breaker != nil {
		body, err = c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, endpoint, accept)
		})
	} else {
		body, err = c.do(ctx, endpoint, accept)
	}
	metrics.UpstreamRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.UpstreamRequests.WithLabelValues(c.name, "success").Inc()
	case IsCircuitOpen(err):
		metrics.UpstreamRequests.WithLabelValues(c.name, "rejected").Inc()
		slog.Warn("Provider circuit open, request rejected", "provider", c.name)
	default:
		metrics.UpstreamRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return body, err
}

func (c *Client) do(ctx context.Context, endpoint, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request %s: %w", c.name, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Provider: c.name,
			Code:     resp.StatusCode,
			Path:     req.URL.Path,
			Body:     strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.name, err)
	}
	return body, nil
}
