package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Sample Page</title></head>
<body>
<h1>Welcome</h1>
<p>Some documentation text.</p>
<a href="/docs/guide">Guide</a>
<a href="https://other.example.org/page#frag">External</a>
<a href="/docs/guide">Duplicate</a>
<a href="mailto:team@example.com">Mail</a>
</body>
</html>`

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "testbot/1.0" {
			t.Errorf("User-Agent = %q, want testbot/1.0", got)
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("testbot/1.0")
	page, err := f.Fetch(context.Background(), srv.URL+"/docs")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if page.Title != "Sample Page" {
		t.Errorf("Title = %q, want Sample Page", page.Title)
	}
	if !strings.Contains(page.Markdown, "# Welcome") {
		t.Errorf("Markdown missing heading: %q", page.Markdown)
	}
	if !strings.Contains(page.Markdown, "Some documentation text.") {
		t.Errorf("Markdown missing paragraph: %q", page.Markdown)
	}
	if page.Bytes == 0 {
		t.Error("Bytes should record the body size")
	}
}

func TestHTTPFetcher_LinkExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("testbot/1.0")
	page, err := f.Fetch(context.Background(), srv.URL+"/docs")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(page.Links) != 2 {
		t.Fatalf("Links = %v, want 2 (relative resolved, duplicate and mailto dropped)", page.Links)
	}
	if page.Links[0] != srv.URL+"/docs/guide" {
		t.Errorf("Relative link resolved to %q", page.Links[0])
	}
	if page.Links[1] != "https://other.example.org/page" {
		t.Errorf("External link = %q, fragment should be stripped", page.Links[1])
	}
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher("testbot/1.0")
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Expected error for 503 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", statusErr.Code)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"server error", &StatusError{Code: 500}, true},
		{"bad gateway", &StatusError{Code: 502}, true},
		{"rate limited", &StatusError{Code: 429}, true},
		{"not found", &StatusError{Code: 404}, false},
		{"forbidden", &StatusError{Code: 403}, false},
		{"plain error", errors.New("boom"), false},
		{"url timeout", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("DeadlineExceeded should be a timeout")
	}
	if IsTimeout(errors.New("boom")) {
		t.Error("Plain error is not a timeout")
	}
	if IsTimeout(nil) {
		t.Error("nil is not a timeout")
	}
}

func TestParseHTML_MalformedInput(t *testing.T) {
	u, _ := url.Parse("https://example.com/page")

	// The HTML parser is forgiving; worst case is empty results
	title, links := parseHTML("<<<not really html>>>", u)
	if title != "" {
		t.Errorf("Title = %q for garbage input", title)
	}
	if len(links) != 0 {
		t.Errorf("Links = %v for garbage input", links)
	}
}
