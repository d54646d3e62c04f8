package confluence

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

	"github.com/avast/retry-go/v4"
)

// Default client behavior. Overridable through options.
const (
	// defaultPageLimit is the page size for paginated listing requests.
	defaultPageLimit = 50

	// defaultRetryAttempts bounds how often a single request is retried on
	// 429/5xx responses or connection errors before giving up.
	defaultRetryAttempts = 3

	// defaultRetryDelay is the base delay between retries. The actual delay
	// grows exponentially with each attempt.
	defaultRetryDelay = 500 * time.Millisecond

	// defaultRetryMaxDelay caps the exponential backoff so a rate-limited
	// export keeps making progress.
	defaultRetryMaxDelay = 5 * time.Second
)

// Client talks to the Confluence REST API of a single site.
// It handles basic authentication, pagination, and retries so the export
// pipeline only ever sees page records, attachment metadata, and bytes.
//
// Design decision: Transient-failure handling lives here and nowhere else.
// Callers treat every returned error as final; 429 and 5xx responses have
// already been retried with backoff by the time they surface.
type Client struct {
	// baseURL is the site root including the context path, without a
	// trailing slash, e.g. "https://example.atlassian.net/wiki".
	baseURL string

	// username and apiToken form the basic auth pair sent on every request.
	username string
	apiToken string

	// userAgent is sent on every request.
	userAgent string

	// pageLimit is the page size for paginated listing requests.
	pageLimit int

	// retryAttempts bounds retries per request.
	retryAttempts uint

	// logger receives debug output. Never nil after NewClient.
	logger *slog.Logger

	// httpClient performs all requests. Its transport injects the
	// Authorization header.
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithPageLimit sets the page size for paginated listing requests.
func WithPageLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.pageLimit = limit
		}
	}
}

// WithRetryAttempts sets how often a request is retried on transient
// failures. 1 means no retries.
func WithRetryAttempts(attempts uint) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
	}
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
// The Authorization header is still injected by the Client itself, so test
// servers observe the same requests production servers do.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for the given site.
//
// The baseURL must include the context path under which the REST API lives;
// for Confluence Cloud that is the "/wiki" suffix, e.g.
// "https://example.atlassian.net/wiki". The timeout applies per request.
//
// Design decision: The constructor validates inputs but performs no network
// I/O. This keeps construction cheap and lets tests build clients against
// httptest servers without side effects.
func NewClient(baseURL, username, apiToken string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidSiteURL
	}

	if username == "" || apiToken == "" {
		return nil, ErrNoCredentials
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		username:      username,
		apiToken:      apiToken,
		userAgent:     "spacedown",
		pageLimit:     defaultPageLimit,
		retryAttempts: defaultRetryAttempts,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = newHTTPClient(timeout)
	}

	return c, nil
}

// newHTTPClient builds the default HTTP client for API access.
//
// Design decisions:
//   - Connection pool sized for a handful of concurrent downloads against
//     one host; more idle connections than that just hold sockets open
//   - Redirect limit of 10 prevents loops while allowing the redirects
//     Confluence uses for attachment downloads
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// BaseURL returns the configured site root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs one authenticated GET against an API URL and returns the
// response. Transient failures (connection errors, 429, 5xx) are retried
// with exponential backoff; permanent failures are classified into the
// package sentinel errors. The caller owns the response body.
func (c *Client) get(ctx context.Context, rawURL string, accept string) (*http.Response, error) {
	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			return c.doOnce(ctx, rawURL, accept)
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(defaultRetryDelay),
		retry.MaxDelay(defaultRetryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Permanent failures (auth, 404, malformed URL) must surface
			// immediately; everything else is worth another attempt.
			return errors.Is(err, errTransient) || isConnectionError(err)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Debug("retrying request",
				"url", rawURL,
				"attempt", attempt+1,
				"reason", err.Error(),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doOnce performs a single request attempt and classifies the response
// status into the package error taxonomy.
func (c *Client) doOnce(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%w (status %d)", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, fmt.Errorf("%w %d from %s", errTransient, resp.StatusCode, rawURL)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
}

// isConnectionError reports whether the error is a failed request attempt
// rather than a classified API response. Context cancellation and redirect
// loops are excluded: aborting the export must not burn retry attempts, and
// a redirect loop repeats identically on every attempt.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errTooManyRedirects) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// apiURL builds an API endpoint URL from a path and query values.
func (c *Client) apiURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// drainAndClose discards any unread body so the connection can be reused,
// then closes it.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
