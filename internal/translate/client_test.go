package translate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestSearchSuccess(t *testing.T) {
	var gotBody, gotContentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`[{"itemType":"journalArticle","title":"A Paper","DOI":"10.1234/abc"}]`))
	}))

	records, err := c.Search(context.Background(), "10.1234/abc")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotBody != "10.1234/abc" {
		t.Errorf("request body = %q, want the raw identifier", gotBody)
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", gotContentType)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["title"] != "A Paper" {
		t.Errorf("title = %v, want A Paper", records[0]["title"])
	}
}

func TestSearchSingleObjectResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemType":"book","title":"Solo"}`))
	}))

	records, err := c.Search(context.Background(), "9780000000000")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 1 || records[0]["title"] != "Solo" {
		t.Errorf("records = %v, want the single object wrapped in a slice", records)
	}
}

func TestSearchNoTranslatorNamesIdentifier(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))

	_, err := c.Search(context.Background(), "not-a-real-id")
	if !errors.Is(err, ErrNoTranslator) {
		t.Fatalf("Search() error = %v, want ErrNoTranslator", err)
	}
	if !strings.Contains(err.Error(), "not-a-real-id") {
		t.Errorf("error %q does not name the identifier", err)
	}
}

func TestSearchServerFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("translator crashed"))
	}))

	_, err := c.Search(context.Background(), "10.1234/abc")
	if !errors.Is(err, ErrServerFailed) {
		t.Fatalf("Search() error = %v, want ErrServerFailed", err)
	}
	if !strings.Contains(err.Error(), "10.1234/abc") {
		t.Errorf("error %q does not name the identifier", err)
	}
	if !strings.Contains(err.Error(), "translator crashed") {
		t.Errorf("error %q does not carry the server message", err)
	}
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens there anymore

	c := NewClient(WithBaseURL(url))
	_, err := c.Search(context.Background(), "10.1234/abc")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Search() error = %v, want ErrUnreachable", err)
	}
	// The error tells the user how to get a server running.
	if !strings.Contains(err.Error(), "docker run") {
		t.Errorf("error %q carries no remediation hint", err)
	}
}

func TestIsAvailable(t *testing.T) {
	up := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The probe path need not exist; responding at all proves liveness.
		w.WriteHeader(http.StatusNotFound)
	}))
	if !up.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = false for a responding server")
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	down := NewClient(WithBaseURL(url))
	if down.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true for an unreachable server")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	t.Setenv("ZOTERO_TRANSLATE_URL", "")
	c := NewClient()
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}

	t.Setenv("ZOTERO_TRANSLATE_URL", "http://translate:9999/")
	c2 := NewClient()
	if c2.baseURL != "http://translate:9999" {
		t.Errorf("baseURL = %q, want env value with trailing slash trimmed", c2.baseURL)
	}
}
