package crawler

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/fetch"
	"github.com/emailengineer/email-extractor/internal/storage"
)

func TestIsPriority(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/contact", true},
		{"https://example.com/ABOUT-US", true},
		{"https://example.com/blog/our-team/bios", true},
		{"https://example.com/products", false},
		{"https://example.com/", false},
	}

	for _, tt := range tests {
		if got := isPriority(tt.url); got != tt.want {
			t.Errorf("isPriority(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestNewDefaultsMaxDepth(t *testing.T) {
	c := New(nil, nil, nil, 0)
	if c.maxDepth != defaultMaxDepth {
		t.Errorf("maxDepth = %d, want %d", c.maxDepth, defaultMaxDepth)
	}
}

func TestNewKeepsExplicitMaxDepth(t *testing.T) {
	c := New(nil, nil, nil, 5)
	if c.maxDepth != 5 {
		t.Errorf("maxDepth = %d, want 5", c.maxDepth)
	}
}

type fakeFetcher struct {
	pages map[string]fetch.Result
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) fetch.Result {
	return f.pages[rawURL]
}

type fakeCrawlStore struct {
	mu           sync.Mutex
	claimed      bool
	pages        []string
	flushed      []storage.PendingEmail
	completed    bool
	failed       bool
	pagesCrawled int
	emailsFound  int
}

func (s *fakeCrawlStore) ClaimDomain(_ context.Context, _ int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claimed = true

	return nil
}

func (s *fakeCrawlStore) InsertPage(_ context.Context, _ int64, rawURL string, _ int, _, _ *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = append(s.pages, rawURL)

	return int64(len(s.pages)), nil
}

func (s *fakeCrawlStore) FlushEmails(_ context.Context, _ int64, pending []storage.PendingEmail) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushed = pending

	return len(pending), nil
}

func (s *fakeCrawlStore) CompleteDomain(_ context.Context, _ int64, pagesCrawled, emailsFound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = true
	s.pagesCrawled = pagesCrawled
	s.emailsFound = emailsFound

	return nil
}

func (s *fakeCrawlStore) FailDomain(_ context.Context, _ int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed = true

	return nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr)
	return &l
}

func TestCrawlFetchesExtractsAndCompletes(t *testing.T) {
	start := "https://example.com/"
	contact := "https://example.com/contact"

	fetcher := &fakeFetcher{pages: map[string]fetch.Result{
		start: {
			StatusCode:  200,
			ContentType: "text/html",
			Body: []byte(`<html><body>
				<a href="/contact">Contact</a>
				<a href="/other">Other</a>
				<p>reach us at info@example.com</p>
			</body></html>`),
		},
		contact: {
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<html><body>sales@example.com</body></html>`),
		},
		"https://example.com/other": {
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<html><body>no emails here</body></html>`),
		},
	}}

	store := &fakeCrawlStore{}

	c := New(fetcher, store, testLogger(), 2)
	c.Crawl(context.Background(), 7, start, "worker-1")

	if !store.claimed {
		t.Error("expected domain claimed")
	}

	if !store.completed {
		t.Error("expected domain completed")
	}

	if store.failed {
		t.Error("domain should not be failed")
	}

	if store.pagesCrawled != 3 {
		t.Errorf("pagesCrawled = %d, want 3", store.pagesCrawled)
	}

	if len(store.flushed) != 2 {
		t.Fatalf("expected 2 emails flushed, got %d: %+v", len(store.flushed), store.flushed)
	}
}

func TestCrawlCompletesDomainDespiteFlushError(t *testing.T) {
	start := "https://example.com/"

	fetcher := &fakeFetcher{pages: map[string]fetch.Result{
		start: {StatusCode: 200, ContentType: "text/html", Body: []byte(`<html></html>`)},
	}}

	store := &erroringFlushStore{}

	c := New(fetcher, store, testLogger(), 1)
	c.Crawl(context.Background(), 7, start, "worker-1")

	if !store.completed {
		t.Error("expected domain completed despite flush error")
	}

	if store.failed {
		t.Error("domain should not be failed when only the email flush errors")
	}
}

type erroringFlushStore struct {
	fakeCrawlStore
}

func (s *erroringFlushStore) FlushEmails(_ context.Context, _ int64, _ []storage.PendingEmail) (int, error) {
	return 0, errFlush
}

var errFlush = &flushError{}

type flushError struct{}

func (*flushError) Error() string { return "flush failed" }

func TestCrawlFailsDomainWhenClaimErrors(t *testing.T) {
	store := &erroringClaimStore{}

	c := New(&fakeFetcher{}, store, testLogger(), 1)
	c.Crawl(context.Background(), 7, "https://example.com/", "worker-1")

	if !store.failed {
		t.Error("expected domain marked failed when claim fails")
	}

	if store.completed {
		t.Error("domain should not be completed when claim fails")
	}
}

type erroringClaimStore struct {
	fakeCrawlStore
}

func (s *erroringClaimStore) ClaimDomain(_ context.Context, _ int64, _ string) error {
	return errClaim
}

var errClaim = &claimError{}

type claimError struct{}

func (*claimError) Error() string { return "claim failed" }
