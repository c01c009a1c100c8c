package crawler

import (
	"testing"

	"github.com/bad33ndj3/mcp-site-index/internal/testutil"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		wantHost string
		wantErr  bool
	}{
		{
			name:     "lowercases scheme and host",
			raw:      "HTTPS://Example.COM/Docs",
			want:     "https://example.com/Docs",
			wantHost: "example.com",
		},
		{
			name:     "drops fragment",
			raw:      "https://example.com/page#section-2",
			want:     "https://example.com/page",
			wantHost: "example.com",
		},
		{
			name:     "sorts query parameters",
			raw:      "https://example.com/search?z=1&a=2",
			want:     "https://example.com/search?a=2&z=1",
			wantHost: "example.com",
		},
		{
			name:     "trims trailing slash",
			raw:      "https://example.com/docs/",
			want:     "https://example.com/docs",
			wantHost: "example.com",
		},
		{
			name:     "root path kept",
			raw:      "https://example.com/",
			want:     "https://example.com/",
			wantHost: "example.com",
		},
		{
			name:     "local path cleaned",
			raw:      "docs//guide/../guide/intro.md",
			want:     "docs/guide/intro.md",
			wantHost: "",
		},
		{
			name:    "empty target",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			raw:     "ftp://example.com/file",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, host, err := NormalizeURL(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizeURL(%q) expected error, got %q", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) failed: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			if host != tc.wantHost {
				t.Errorf("NormalizeURL(%q) host = %q, want %q", tc.raw, host, tc.wantHost)
			}
		})
	}
}

func TestNormalizeURL_DuplicatesCollapse(t *testing.T) {
	variants := []string{
		"https://example.com/docs",
		"https://EXAMPLE.com/docs/",
		"https://example.com/docs#intro",
	}

	first, _, err := NormalizeURL(variants[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range variants[1:] {
		got, _, err := NormalizeURL(v)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Errorf("NormalizeURL(%q) = %q, want %q", v, got, first)
		}
	}
}

func TestFrontier_EnqueueDeduplicates(t *testing.T) {
	f := NewFrontier(2, false, nil)

	added := f.Enqueue([]string{
		"https://example.com/docs",
		"https://example.com/docs/", // same after normalization
		"https://example.com/other",
		"not a url ://",
	})

	if added != 2 {
		t.Errorf("Enqueue added %d, want 2", added)
	}
	if got := f.Pending(); got != 2 {
		t.Errorf("Pending = %d, want 2", got)
	}
}

func TestFrontier_SeedsAreDepthZero(t *testing.T) {
	f := NewFrontier(2, false, nil)
	f.Enqueue([]string{"https://example.com/"})

	target, ok := f.Next()
	if !ok {
		t.Fatal("Expected a target")
	}
	if target.Depth != 0 {
		t.Errorf("Seed depth = %d, want 0", target.Depth)
	}
	if target.Domain != "example.com" {
		t.Errorf("Seed domain = %q, want example.com", target.Domain)
	}
}

func TestFrontier_DepthLimit(t *testing.T) {
	f := NewFrontier(1, false, nil)
	f.Enqueue([]string{"https://example.com/"})

	seed, _ := f.Next()

	// Depth 1 links are accepted
	added := f.RecordDiscovered(seed, []string{"https://example.com/child"})
	if added != 1 {
		t.Fatalf("RecordDiscovered at depth 1 added %d, want 1", added)
	}

	child, _ := f.Next()
	if child.Depth != 1 {
		t.Fatalf("Child depth = %d, want 1", child.Depth)
	}
	if child.Parent != seed.URL {
		t.Errorf("Child parent = %q, want %q", child.Parent, seed.URL)
	}

	// Depth 2 links exceed the limit
	added = f.RecordDiscovered(child, []string{"https://example.com/grandchild"})
	if added != 0 {
		t.Errorf("RecordDiscovered beyond max depth added %d, want 0", added)
	}
}

func TestFrontier_SameDomainFiltering(t *testing.T) {
	f := NewFrontier(2, true, nil)
	f.Enqueue([]string{"https://example.com/"})

	seed, _ := f.Next()
	added := f.RecordDiscovered(seed, []string{
		"https://example.com/keep",
		"https://elsewhere.org/drop",
	})

	if added != 1 {
		t.Fatalf("RecordDiscovered added %d, want 1", added)
	}
	target, _ := f.Next()
	if target.Domain != "example.com" {
		t.Errorf("Kept target domain = %q, want example.com", target.Domain)
	}
}

func TestFrontier_PolicyDeniesTargets(t *testing.T) {
	policy := testutil.NewMockPolicy()
	policy.Denied["https://example.com/private"] = true

	f := NewFrontier(2, false, policy)
	f.Enqueue([]string{"https://example.com/"})

	seed, _ := f.Next()
	added := f.RecordDiscovered(seed, []string{
		"https://example.com/private",
		"https://example.com/public",
	})

	if added != 1 {
		t.Errorf("RecordDiscovered added %d, want 1", added)
	}

	// A denied URL stays claimed and is never revisited
	added = f.RecordDiscovered(seed, []string{"https://example.com/private"})
	if added != 0 {
		t.Errorf("Re-discovered denied URL added %d, want 0", added)
	}
}

func TestFrontier_IdleTracksInFlight(t *testing.T) {
	f := NewFrontier(2, false, nil)
	f.Enqueue([]string{"https://example.com/"})

	if f.Idle() {
		t.Fatal("Frontier with a queued target should not be idle")
	}

	target, _ := f.Next()
	if f.Idle() {
		t.Fatal("Frontier with an in-flight target should not be idle")
	}

	// The in-flight worker may still discover more work
	f.RecordDiscovered(target, []string{"https://example.com/more"})
	f.Done()
	if f.Idle() {
		t.Fatal("Frontier with discovered work should not be idle")
	}

	_, _ = f.Next()
	f.Done()
	if !f.Idle() {
		t.Fatal("Drained frontier should be idle")
	}
}

func TestFrontier_NextOnEmpty(t *testing.T) {
	f := NewFrontier(2, false, nil)

	if _, ok := f.Next(); ok {
		t.Error("Next on empty frontier should return false")
	}
	if !f.Idle() {
		t.Error("Empty frontier should be idle")
	}
}

func TestFrontier_LocalPathsBypassDomainFilter(t *testing.T) {
	f := NewFrontier(2, true, nil)
	f.Enqueue([]string{"docs"})

	seed, ok := f.Next()
	if !ok {
		t.Fatal("Expected local seed")
	}
	if seed.Domain != "" {
		t.Errorf("Local seed domain = %q, want empty", seed.Domain)
	}

	added := f.RecordDiscovered(seed, []string{"docs/guide.md", "docs/api.md"})
	if added != 2 {
		t.Errorf("RecordDiscovered local paths added %d, want 2", added)
	}
}
