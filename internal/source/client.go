package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Getter performs a GET request and returns the response body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// ClientOptions configures HTTPClient.
type ClientOptions struct {
	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	// MaxRetries bounds retries of transient failures per request.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	Header          http.Header
}

// DefaultClientOptions returns conservative defaults for public APIs.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		RequestsPerSecond: 1,
		Burst:             1,
		MaxRetries:        5,
		InitialInterval:   500 * time.Millisecond,
		MaxInterval:       10 * time.Second,
		Timeout:           30 * time.Second,
	}
}

// HTTPClient is a throttled HTTP getter with bounded exponential retry.
// Transport errors, 429 and 5xx responses are retried; other non-2xx
// responses fail immediately.
type HTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    ClientOptions
}

// NewHTTPClient creates a client from opts.
func NewHTTPClient(opts ClientOptions) *HTTPClient {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Get fetches url, retrying transient failures up to MaxRetries times.
func (c *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, values := range c.opts.Header {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &statusError{code: resp.StatusCode, body: truncate(string(data), 200)}
			if retryable(resp.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.opts.MaxRetries, 0))), ctx))
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && !retryable(statusErr.code) {
			return nil, fmt.Errorf("%w: %v", ErrRequestRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
