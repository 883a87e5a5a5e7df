// Package fetch downloads candidate and reference images over HTTP with
// retries and a per-client circuit breaker.
package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/resilience"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Client fetches image bytes.
type Client struct {
	http    *http.Client
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	maxBody int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithMaxBody caps response size.
func WithMaxBody(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		breaker: resilience.New("fetch", resilience.FetchConfig()),
		retry:   resilience.DefaultRetryConfig(),
		maxBody: MaxBodyBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get downloads rawURL. Transient failures (5xx, timeouts, connection errors)
// are retried; a 4xx fails immediately.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "invalid image url %q", rawURL)
	}

	var body []byte
	err = resilience.Retry(ctx, c.retry, func() error {
		b, err := resilience.ExecuteWithResult(c.breaker, func() ([]byte, error) {
			return c.once(ctx, u.String())
		})
		body = b
		return err
	})
	if err != nil {
		trace.Logger(ctx).Debug("fetch failed", "url", u.Redacted(), "error", err)
		return nil, err
	}
	return body, nil
}

// Open is Get wrapped as a stream, so a Client can back a reference locator.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	b, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (c *Client) once(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "build request")
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "image/*")
	if tc, ok := trace.FromContext(ctx); ok {
		req.Header.Set(trace.TraceIDKey, tc.TraceID)
		req.Header.Set(trace.SpanIDKey, tc.SpanID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err.WithMetadata("url", target)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	if int64(len(b)) > c.maxBody {
		return nil, apperrors.Newf(apperrors.InvalidArgument, "image larger than %d bytes", c.maxBody)
	}
	return b, nil
}

func statusError(code int) *apperrors.AppError {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return apperrors.New(apperrors.NotFound, "image not found")
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return apperrors.Newf(apperrors.Timeout, "upstream status %d", code)
	case code == http.StatusTooManyRequests || code >= 500:
		return apperrors.Newf(apperrors.Unavailable, "upstream status %d", code)
	default:
		return apperrors.Newf(apperrors.InvalidArgument, "upstream status %d", code)
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.Wrap(err, apperrors.Cancelled, "fetch cancelled")
	}
	var ne interface{ Timeout() bool }
	if stderrors.As(err, &ne) && ne.Timeout() {
		return apperrors.Wrap(err, apperrors.Timeout, "fetch timed out")
	}
	return apperrors.Wrap(err, apperrors.Unavailable, "fetch failed")
}
