// Package httpclient provides the retryable HTTP client shared by the
// source-host API, the registry RPC channel, and the storage RPC channel.
package httpclient

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
)

// Client wraps retryablehttp.Client with mops's retry policy, auth header,
// and failure-budget bookkeeping.
type Client struct {
	baseURL string
	token   string

	// must be used via the atomic package
	currentFailCount uint64
	maxFailCount     uint64

	HTTPClient *retryablehttp.Client
}

// ErrTooManyFailures is returned once maxFailCount requests have failed in a row.
var ErrTooManyFailures = errors.New("skipping HTTP request, too many failures have occurred")

// Opts configures a Client.
type Opts struct {
	// BaseURL is prefixed to every relative request path passed to Get/Post.
	BaseURL string
	// Token is sent as "Authorization: Bearer <token>" when non-empty.
	Token string
	// Timeout bounds a single HTTP attempt, including its redirects and
	// reading the body; each retry attempt gets its own Timeout. Zero
	// means no timeout.
	Timeout time.Duration
	// MaxFailCount stops issuing requests after this many have failed in a
	// row, protecting a flaky host from an unbounded retry storm across an
	// entire graph walk. Zero disables the budget.
	MaxFailCount uint64
}

// New constructs a Client. logger receives retry diagnostics.
func New(opts Opts, logger hclog.Logger) *Client {
	c := &Client{
		baseURL:      opts.BaseURL,
		token:        opts.Token,
		maxFailCount: opts.MaxFailCount,
		HTTPClient: &retryablehttp.Client{
			HTTPClient: &http.Client{
				Timeout: opts.Timeout,
			},
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
			RetryMax:     3,
			Backoff:      retryablehttp.DefaultBackoff,
			Logger:       logger,
		},
	}
	c.HTTPClient.CheckRetry = c.checkRetry
	return c
}

func (c *Client) userAgent() string {
	return fmt.Sprintf("mops-cli %s %s (%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func (c *Client) okToRequest() error {
	if c.maxFailCount == 0 || atomic.LoadUint64(&c.currentFailCount) < c.maxFailCount {
		return nil
	}
	return ErrTooManyFailures
}

func (c *Client) retryPolicy(resp *http.Response, err error) (bool, error) {
	if err != nil {
		var unknownAuth x509.UnknownAuthorityError
		if errors.As(err, &unknownAuth) {
			atomic.AddUint64(&c.currentFailCount, 1)
			return false, err
		}
		atomic.AddUint64(&c.currentFailCount, 1)
		return true, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		atomic.AddUint64(&c.currentFailCount, 1)
		return true, nil
	}

	if resp.StatusCode == 0 || (resp.StatusCode >= 500 && resp.StatusCode != 501) {
		atomic.AddUint64(&c.currentFailCount, 1)
		return true, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	// Do not retry 4xx (other than 429): the server has told us the
	// request itself is bad, and retrying wastes the failure budget.
	if resp.StatusCode < 500 {
		// The host answered, which ends any run of consecutive failures.
		atomic.StoreUint64(&c.currentFailCount, 0)
	}
	return false, nil
}

func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		atomic.AddUint64(&c.currentFailCount, 1)
		return false, ctx.Err()
	}
	shouldRetry, retryErr := c.retryPolicy(resp, err)
	if shouldRetry {
		if budgetErr := c.okToRequest(); budgetErr != nil {
			return false, budgetErr
		}
	}
	return shouldRetry, retryErr
}

func (c *Client) makeURL(path string) string {
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + path
}

// Get issues an authenticated GET against baseURL+path and returns the
// response body verbatim, regardless of status code — callers interpret
// the body themselves (the source-host API signals "missing" via a
// "404: Not Found" body prefix rather than a status code).
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	if err := c.okToRequest(); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.makeURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", path, err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// PostJSON issues an authenticated POST with a JSON body and returns the
// raw response body, erroring on any non-2xx status.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) ([]byte, error) {
	if err := c.okToRequest(); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.makeURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %s", resp.Status, string(raw))
	}
	return raw, nil
}
