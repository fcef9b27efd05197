// Package translate is a client for the Zotero translation server, which
// resolves raw identifiers (DOI, ISBN, PMID, arXiv ID) into structured
// bibliographic records.
//
// The service is optional: it usually runs locally and may simply not be
// there. Search surfaces that as an actionable error; IsAvailable probes
// liveness without ever raising.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where a local translation server listens.
	DefaultBaseURL = "http://localhost:1969"

	// DefaultTimeout is the HTTP request timeout. Identifier resolution can
	// involve upstream lookups, so it is generous.
	DefaultTimeout = 30 * time.Second
)

// Common errors returned by the client.
var (
	// ErrNoTranslator indicates the server has no translator for the
	// identifier (HTTP 501).
	ErrNoTranslator = errors.New("no translator available")

	// ErrServerFailed indicates the server failed while processing the
	// identifier (HTTP 500).
	ErrServerFailed = errors.New("translation server error")

	// ErrUnreachable indicates the server could not be reached at all.
	ErrUnreachable = errors.New("translation server unreachable")
)

// Record is one candidate bibliographic record. Field sets vary by item
// type, so the mapping is open-ended.
type Record map[string]any

// Client is a stateless client for one translation server.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the translation server URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a translation server client. The base URL defaults to
// the ZOTERO_TRANSLATE_URL environment variable, then DefaultBaseURL.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
	}

	if url := os.Getenv("ZOTERO_TRANSLATE_URL"); url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Search resolves a raw identifier into candidate bibliographic records,
// best match first.
func (c *Client) Search(ctx context.Context, identifier string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", strings.NewReader(identifier))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v (start it with: docker run -d -p 1969:1969 zotero/translation-server)", ErrUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to decoding.
	case http.StatusNotImplemented:
		return nil, fmt.Errorf("%w for %q", ErrNoTranslator, identifier)
	case http.StatusInternalServerError:
		return nil, fmt.Errorf("%w while processing %q: %s", ErrServerFailed, identifier, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("translation server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		// Some translators return a single object instead of an array.
		var single Record
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, fmt.Errorf("parsing translation results: %w", err)
		}
		records = []Record{single}
	}

	return records, nil
}

// IsAvailable reports whether the translation server is up. Any HTTP
// response counts as alive, including a 404 on the probe path; only a
// transport failure means down. Never returns an error.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
