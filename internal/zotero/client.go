// Package zotero is a client for the Zotero Web API v3.
//
// One Client serves one library (user or group). The client owns the
// library's optimistic-concurrency version counter and the request rate
// state; every call passes through the rate gate before touching the
// network, and every response updates the version and backoff bookkeeping
// from its headers.
package zotero

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/matsen/zotkit/internal/cache"
	"github.com/matsen/zotkit/internal/ratelimit"
)

const (
	// BaseURL is the Zotero Web API base URL.
	BaseURL = "https://api.zotero.org"

	// APIVersion is the Zotero-API-Version header value.
	APIVersion = "3"

	// DefaultTimeout is the default HTTP request timeout. Generous because
	// attachment downloads can be large.
	DefaultTimeout = 60 * time.Second

	// defaultRetryAfter is the wait reported for a 429 that carries no
	// Retry-After or Backoff hint.
	defaultRetryAfter = 5 * time.Second
)

// Client is a rate-limited client for one Zotero library.
type Client struct {
	httpClient *http.Client
	gate       *ratelimit.Gate
	apiKey     string
	baseURL    string
	library    Library

	mu           sync.Mutex
	version      int // max Last-Modified-Version observed so far
	versionKnown bool
	store        *cache.Store
	cacheDir     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithRateInterval sets the minimum spacing between requests.
func WithRateInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.gate = ratelimit.New(d)
	}
}

// WithCacheDir overrides the attachment cache location.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// WithCache sets the attachment cache store directly (for testing).
func WithCache(s *cache.Store) ClientOption {
	return func(c *Client) {
		c.store = s
	}
}

// NewClient creates a client for the given library. The API key defaults to
// the ZOTERO_API_KEY environment variable.
func NewClient(library Library, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		gate:       ratelimit.New(ratelimit.DefaultInterval),
		baseURL:    BaseURL,
		library:    library,
		apiKey:     apiKey,
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("ZOTERO_API_KEY")
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Library returns the library identity this client serves.
func (c *Client) Library() Library {
	return c.library
}

// LibraryVersion returns the last observed library version. The second
// return value is false until a response has carried a version signal.
func (c *Client) LibraryVersion() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, c.versionKnown
}

// attachmentCache returns the cache store, opening the default location on
// first use.
func (c *Client) attachmentCache() (*cache.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	s, err := cache.Open(c.cacheDir, string(c.library.Type), c.library.ID)
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

// response is a fully read HTTP response. totalResults is -1 when the
// Total-Results header was absent.
type response struct {
	status       int
	contentType  string
	totalResults int
	body         []byte
}

// do issues one request against the API. path is relative to the library
// namespace unless absolute is set by the caller via the full helpers. The
// rate gate is consulted first; version and backoff signals are absorbed
// from the response headers before any status handling, including on
// failures.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body io.Reader) (*response, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", APIVersion)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.observeHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(resp.Header)}
	}

	total := -1
	if v := resp.Header.Get("Total-Results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			total = n
		}
	}

	return &response{
		status:       resp.StatusCode,
		contentType:  resp.Header.Get("Content-Type"),
		totalResults: total,
		body:         data,
	}, nil
}

// lib prefixes a path with the library namespace.
func (c *Client) lib(path string) string {
	return c.library.Prefix() + path
}

// observeHeaders absorbs the version and backoff signals every response may
// carry. The version merge is a monotonic max so a stale or out-of-order
// response can never move the tracked version backwards.
func (c *Client) observeHeaders(h http.Header) {
	if v := h.Get("Last-Modified-Version"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.mu.Lock()
			if !c.versionKnown || n > c.version {
				c.version = n
			}
			c.versionKnown = true
			c.mu.Unlock()
		}
	}
	if b := h.Get("Backoff"); b != "" {
		if secs, err := strconv.ParseFloat(b, 64); err == nil {
			c.gate.Backoff(time.Duration(secs * float64(time.Second)))
		}
	}
}

// retryAfter extracts the wait hint from a 429 response.
func retryAfter(h http.Header) time.Duration {
	for _, name := range []string{"Retry-After", "Backoff"} {
		if v := h.Get(name); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	return defaultRetryAfter
}

// checkStatus maps a non-success response to an error. 404 and 412 get
// distinguished kinds; everything else carries the status and body
// verbatim.
func checkStatus(r *response) error {
	switch {
	case r.status >= 200 && r.status < 300:
		return nil
	case r.status == http.StatusNotFound:
		return fmt.Errorf("%w (status 404)", ErrNotFound)
	case r.status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w (status 412): %s", ErrVersionConflict, r.body)
	default:
		return &APIError{StatusCode: r.status, Body: string(r.body)}
	}
}

// get issues a GET under the library namespace and checks the status.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*response, error) {
	r, err := c.do(ctx, http.MethodGet, c.lib(path), query, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureVersion seeds the library version if it has never been observed,
// by fetching a single item. Called before the first write of a client's
// lifetime; a side-effecting precondition, not a pure read.
func (c *Client) ensureVersion(ctx context.Context) error {
	if _, known := c.LibraryVersion(); known {
		return nil
	}
	q := url.Values{}
	q.Set("limit", "1")
	if _, err := c.get(ctx, "/items", q); err != nil {
		return fmt.Errorf("seeding library version: %w", err)
	}
	return nil
}

// writeHeaders returns the headers for a write at the given precondition
// version.
func writeHeaders(version int) map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"If-Unmodified-Since-Version": strconv.Itoa(version),
	}
}
