package imdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"origlang/internal/logging"
	"origlang/internal/ratelimit"
)

// ErrNotFound reports an IMDb 404. It is never retried.
var ErrNotFound = errors.New("imdb page not found")

const maxPageBytes = 8 << 20

// HTTPStatusError reports a non-success IMDb response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("imdb %s returned %d", e.URL, e.StatusCode)
}

// Client fetches IMDb pages with browser-like headers.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *ratelimit.Window
	maxRetries  int
	backoffUnit time.Duration
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimiter applies limiter to every attempt.
func WithRateLimiter(limiter *ratelimit.Window) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithMaxRetries sets how many attempts a fetch may make.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoffUnit scales retry delays; tests use milliseconds.
func WithBackoffUnit(unit time.Duration) Option {
	return func(c *Client) {
		if unit > 0 {
			c.backoffUnit = unit
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an IMDb page client.
func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://www.imdb.com"
	}
	c := &Client{
		baseURL:     baseURL,
		userAgent:   strings.TrimSpace(userAgent),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxRetries:  3,
		backoffUnit: time.Second,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the site root used to build page URLs.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch retrieves path (relative to the base URL) and returns the decoded
// body. A 404 yields ErrNotFound; a 429 backs off exponentially; other
// failures back off linearly until the retry budget is spent.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("imdb rate limit wait: %w", err)
		}
		body, err := c.fetchOnce(ctx, target)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == c.maxRetries-1 {
			break
		}

		var statusErr *HTTPStatusError
		throttled := errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests
		delay := ratelimit.Backoff(attempt, throttled, c.backoffUnit)
		c.logger.Debug("imdb fetch retry",
			logging.String("url", target),
			logging.Int("attempt", attempt+1),
			logging.Bool("throttled", throttled),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := ratelimit.SleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("imdb fetch %s failed after %d attempts: %w", target, c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
