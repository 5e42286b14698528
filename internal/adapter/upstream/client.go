// Package upstream is the shared HTTP GET path used by every radar provider
// adapter: bounded retries with exponential backoff, a circuit breaker per
// upstream, JSON decoding and DTO validation.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

const maxBodyBytes = 8 << 20

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errBadStatus   = errors.New("unexpected status code")
)

// Getter is the part of Client that provider adapters depend on.
type Getter interface {
	GetJSON(ctx context.Context, rawURL string, dst any) error
}

// Options tunes a Client. Zero values fall back to the defaults below.
type Options struct {
	Timeout          time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HTTPClient       *http.Client
	Clock            clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 250 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 2 * time.Second
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// DefaultOptions returns the production retry and breaker settings.
func DefaultOptions(timeout time.Duration) Options {
	return Options{Timeout: timeout, MaxRetries: 2}
}

// Client performs resilient GET requests against a single upstream.
type Client struct {
	name     string
	opts     Options
	breaker  *gobreaker.CircuitBreaker[[]byte]
	validate *validator.Validate
	logger   *slog.Logger
}

// NewClient creates a client whose breaker is named after the upstream.
func NewClient(name string, opts Options, logger *slog.Logger) *Client {
	opts = opts.withDefaults()
	c := &Client{
		name:     name,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state changed", "upstream", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Name returns the upstream name used for logs and the breaker.
func (c *Client) Name() string { return c.name }

// BreakerState reports the breaker state, e.g. "closed" or "open".
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// GetJSON fetches rawURL, decodes the body into dst and validates it.
// Transport failures and non-2xx responses wrap domain.ErrNetworkFailure;
// undecodable or invalid bodies wrap domain.ErrMalformedManifest.
func (c *Client) GetJSON(ctx context.Context, rawURL string, dst any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", domain.ErrMalformedManifest, c.name, err)
	}
	if err := c.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s: validate: %w", domain.ErrMalformedManifest, c.name, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, c.name, err)
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, rawURL)
		})
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, c.name, err)
		}

		lastErr = err
		if !retryable(err) || attempt >= c.opts.MaxRetries {
			break
		}

		delay := backoff(c.opts.InitialBackoff, c.opts.MaxBackoff, attempt)
		c.logger.Debug("upstream request failed, retrying",
			"upstream", c.name, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, c.name, ctx.Err())
		case <-c.opts.Clock.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, c.name, lastErr)
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// retryable reports whether a failed attempt may succeed on retry:
// rate limiting, server errors and transport errors. Other 4xx are final.
func retryable(err error) bool {
	return !errors.Is(err, errBadStatus) && !errors.Is(err, context.Canceled)
}

func backoff(initial, limit time.Duration, attempt int) time.Duration {
	d := min(initial, limit)
	for i := 0; i < attempt && d < limit; i++ {
		d = sharedretry.NextBackoff(d, limit)
	}
	return d
}
