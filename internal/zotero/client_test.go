package zotero

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matsen/zotkit/internal/cache"
)

// newTestClient spins up a fake API server and a client pointed at it, with
// the rate gate tightened so tests run fast.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := cache.Open(t.TempDir(), "user", "1")
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}

	return NewClient(Library{Type: LibraryUser, ID: "1"}, "test-key",
		WithBaseURL(srv.URL),
		WithRateInterval(time.Millisecond),
		WithCache(store))
}

func TestLibraryPrefix(t *testing.T) {
	tests := []struct {
		lib  Library
		want string
	}{
		{Library{Type: LibraryUser, ID: "42"}, "/users/42"},
		{Library{Type: LibraryGroup, ID: "99"}, "/groups/99"},
	}
	for _, tt := range tests {
		if got := tt.lib.Prefix(); got != tt.want {
			t.Errorf("Prefix() = %q, want %q", got, tt.want)
		}
	}
}

func TestAuthHeadersOnEveryRequest(t *testing.T) {
	var gotKey, gotVersion string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Zotero-API-Key")
		gotVersion = r.Header.Get("Zotero-API-Version")
		w.Write([]byte(`{"key":"A","version":1,"data":{}}`))
	}))

	if _, err := c.GetItem(context.Background(), "A"); err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("Zotero-API-Key = %q, want test-key", gotKey)
	}
	if gotVersion != APIVersion {
		t.Errorf("Zotero-API-Version = %q, want %q", gotVersion, APIVersion)
	}
}

func TestVersionMonotonicity(t *testing.T) {
	versions := []string{"10", "7", "12"}
	i := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified-Version", versions[i])
		i++
		w.Write([]byte(`{"key":"A","version":1,"data":{}}`))
	}))

	want := []int{10, 10, 12} // a stale 7 must never move the version back
	for step := range versions {
		if _, err := c.GetItem(context.Background(), "A"); err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		got, known := c.LibraryVersion()
		if !known {
			t.Fatal("LibraryVersion() known = false after versioned response")
		}
		if got != want[step] {
			t.Errorf("after response %d: LibraryVersion() = %d, want %d", step, got, want[step])
		}
	}
}

func TestVersionUnknownBeforeFirstSignal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"A","version":1,"data":{}}`))
	}))

	if _, known := c.LibraryVersion(); known {
		t.Error("LibraryVersion() known = true before any response")
	}
	if _, err := c.GetItem(context.Background(), "A"); err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if _, known := c.LibraryVersion(); known {
		t.Error("LibraryVersion() known = true after response without version header")
	}
}

func TestRateLimitedResponse(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   time.Duration
	}{
		{"retry-after header", map[string]string{"Retry-After": "30"}, 30 * time.Second},
		{"backoff header", map[string]string{"Backoff": "12"}, 12 * time.Second},
		{"no hint defaults to 5s", nil, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			}))

			_, err := c.GetItem(context.Background(), "A")
			if !IsRateLimited(err) {
				t.Fatalf("GetItem() error = %v, want rate limit error", err)
			}
			var rl *RateLimitError
			errors.As(err, &rl)
			if rl.RetryAfter != tt.want {
				t.Errorf("RetryAfter = %v, want %v", rl.RetryAfter, tt.want)
			}
		})
	}
}

func TestBackoffHeaderExtendsGate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Backoff", "2")
		w.Write([]byte(`{"key":"A","version":1,"data":{}}`))
	}))

	if _, err := c.GetItem(context.Background(), "A"); err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if d := c.gate.BackoffRemaining(); d <= 0 {
		t.Errorf("BackoffRemaining() = %v after Backoff header, want > 0", d)
	}
}

func TestBackoffHeaderAppliedOnFailureToo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Backoff", "2")
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := c.GetItem(context.Background(), "A"); err == nil {
		t.Fatal("GetItem() error = nil for 500 response")
	}
	if d := c.gate.BackoffRemaining(); d <= 0 {
		t.Errorf("BackoffRemaining() = %v after failed response with Backoff, want > 0", d)
	}
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetItem(context.Background(), "MISSING1")
	if !IsNotFound(err) {
		t.Errorf("GetItem() error = %v, want not-found", err)
	}
}

func TestVersionConflict(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"key":"A","version":5,"data":{}}`))
		case http.MethodPatch:
			w.WriteHeader(http.StatusPreconditionFailed)
		}
	}))

	err := c.UpdateItem(context.Background(), "A", map[string]any{"title": "x"})
	if !IsVersionConflict(err) {
		t.Errorf("UpdateItem() error = %v, want version conflict", err)
	}
}

func TestAPIErrorCarriesStatusAndBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("Invalid key"))
	}))

	_, err := c.GetItem(context.Background(), "A")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetItem() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 403 {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Body != "Invalid key" {
		t.Errorf("Body = %q, want Invalid key", apiErr.Body)
	}
}

func TestRateGateSpacing(t *testing.T) {
	const interval = 15 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"A","version":1,"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Library{Type: LibraryUser, ID: "1"}, "k",
		WithBaseURL(srv.URL),
		WithRateInterval(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.GetItem(context.Background(), "A"); err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("3 requests took %v, want at least %v", elapsed, 2*interval)
	}
}
