// Package crawler implements the Domain Crawler (spec.md §4.5): a
// bounded breadth-first crawl of one domain that fetches pages,
// extracts links and emails, and persists the results.
package crawler

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/emailextract"
	"github.com/emailengineer/email-extractor/internal/fetch"
	"github.com/emailengineer/email-extractor/internal/health"
	"github.com/emailengineer/email-extractor/internal/linkextract"
	"github.com/emailengineer/email-extractor/internal/storage"
	"github.com/emailengineer/email-extractor/internal/urlcanon"
)

const (
	defaultMaxDepth = 3
	batchSize       = 50
)

// priorityTokens are case-insensitive substrings that promote a link
// ahead of others in the same BFS depth (spec.md §4.5 step "f"). They are
// matched against the whole URL, not only its path.
var priorityTokens = []string{
	"/contact", "/about", "/team", "/careers", "/jobs", "/faq", "/privacy",
	"/support", "/legal", "/terms", "/company", "/staff", "/people",
	"/leadership", "/contact-us", "/about-us", "/our-team", "/meet-the-team",
}

// PageFetcher is the subset of *fetch.Fetcher the crawler needs, kept
// as an interface so tests can substitute a fake HTTP layer.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// CrawlStore is the subset of *storage.DB the crawler needs, kept as an
// interface so tests can substitute a fake instead of a live database.
type CrawlStore interface {
	ClaimDomain(ctx context.Context, domainID int64, workerID string) error
	InsertPage(ctx context.Context, domainID int64, rawURL string, statusCode int, contentType, errMsg *string) (int64, error)
	FlushEmails(ctx context.Context, domainID int64, pending []storage.PendingEmail) (int, error)
	CompleteDomain(ctx context.Context, domainID int64, pagesCrawled, emailsFound int) error
	FailDomain(ctx context.Context, domainID int64, errMsg string) error
}

// Crawler runs Domain Crawls against the shared Fetcher and storage
// Gateway. A Crawler value is stateless between calls; all BFS state
// lives in a per-call crawl.
type Crawler struct {
	fetcher  PageFetcher
	store    CrawlStore
	logger   *zerolog.Logger
	maxDepth int
}

// New builds a Crawler. maxDepth <= 0 falls back to the spec default of 3.
func New(fetcher PageFetcher, store CrawlStore, logger *zerolog.Logger, maxDepth int) *Crawler {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	return &Crawler{fetcher: fetcher, store: store, logger: logger, maxDepth: maxDepth}
}

type queueEntry struct {
	depth int
	url   string
}

// crawl holds the BFS state local to a single domain crawl (spec.md
// §4.5: "base_host, visited, queue, emails").
type crawl struct {
	domainID int64
	baseHost string

	mu      sync.Mutex
	visited map[string]struct{}
	queue   []queueEntry
	emails  map[string]storage.PendingEmail
}

// Crawl runs one domain crawl end to end: claims the Domain row, runs
// the BFS loop, flushes emails, and transitions the Domain to its final
// state. It never returns an error to the caller — failures are
// recorded on the Domain row itself (spec.md §4.5).
func (c *Crawler) Crawl(ctx context.Context, domainID int64, startURL, workerID string) {
	logger := c.logger.With().Int64("domain_id", domainID).Str("worker_id", workerID).Logger()

	if err := c.store.ClaimDomain(ctx, domainID, workerID); err != nil {
		logger.Error().Err(err).Msg("failed to claim domain")

		if failErr := c.store.FailDomain(ctx, domainID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("failed to record domain failure")
		}

		health.DomainsFailed.Inc()

		return
	}

	health.DomainsPending.Dec()
	health.DomainsCrawling.Inc()
	defer health.DomainsCrawling.Dec()

	st := c.runBFS(ctx, &logger, domainID, startURL)

	if err := c.flushAndComplete(ctx, &logger, domainID, st); err != nil {
		logger.Error().Err(err).Msg("domain crawl failed")

		if failErr := c.store.FailDomain(ctx, domainID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("failed to record domain failure")
		}

		health.DomainsFailed.Inc()

		return
	}

	health.DomainsCompleted.Inc()
}

// flushAndComplete flushes extracted emails and transitions the Domain
// to completed. A FlushEmails failure is logged but does not fail the
// crawl — spec.md §7: "Email batch insert failure... Log at error;
// still transition domain to completed."
func (c *Crawler) flushAndComplete(ctx context.Context, logger *zerolog.Logger, domainID int64, st *crawl) error {
	st.mu.Lock()
	pending := make([]storage.PendingEmail, 0, len(st.emails))
	for _, e := range st.emails {
		pending = append(pending, e)
	}
	visitedCount := len(st.visited)
	st.mu.Unlock()

	inserted, err := c.store.FlushEmails(ctx, domainID, pending)
	if err != nil {
		logger.Error().Err(err).Msg("failed to flush emails")
		inserted = 0
	}

	return c.store.CompleteDomain(ctx, domainID, visitedCount, inserted)
}

// runBFS drives the queue-draining loop: pop up to batchSize entries,
// process them concurrently, and append their discovered links/emails
// before popping the next batch (spec.md §4.5 BFS loop policy).
func (c *Crawler) runBFS(ctx context.Context, logger *zerolog.Logger, domainID int64, startURL string) *crawl {
	st := &crawl{
		domainID: domainID,
		baseHost: urlcanon.HostOf(startURL),
		visited:  make(map[string]struct{}),
		queue:    []queueEntry{{depth: 0, url: urlcanon.Canonicalize(startURL)}},
		emails:   make(map[string]storage.PendingEmail),
	}

	for len(st.queue) > 0 {
		n := batchSize
		if n > len(st.queue) {
			n = len(st.queue)
		}

		batch := st.queue[:n]
		st.queue = st.queue[n:]

		var wg sync.WaitGroup

		for _, entry := range batch {
			entry := entry

			if entry.depth > c.maxDepth {
				continue
			}

			st.mu.Lock()
			_, seen := st.visited[entry.url]
			if !seen {
				st.visited[entry.url] = struct{}{}
			}
			st.mu.Unlock()

			if seen {
				continue
			}

			wg.Add(1)

			go func() {
				defer wg.Done()
				c.processURL(ctx, logger, st, entry)
			}()
		}

		wg.Wait()
	}

	return st
}

// processURL implements one BFS entry's processing steps c-f (spec.md
// §4.5). Step b is done by the caller: the URL is already marked visited
// before this runs.
func (c *Crawler) processURL(ctx context.Context, logger *zerolog.Logger, st *crawl, entry queueEntry) {
	res := c.fetcher.Fetch(ctx, entry.url)

	var (
		contentType  *string
		errorMessage *string
	)

	if len(res.Body) > 0 {
		ct := res.ContentType
		contentType = &ct
	} else {
		msg := "Failed to fetch"
		errorMessage = &msg
	}

	pageID, err := c.store.InsertPage(ctx, st.domainID, entry.url, res.StatusCode, contentType, errorMessage)
	if err != nil {
		logger.Error().Err(err).Str("url", entry.url).Msg("failed to persist page")
		return
	}

	health.PagesFetchedTotal.Inc()

	if len(res.Body) == 0 {
		health.FetchErrorsTotal.Inc()
		return
	}

	html := string(res.Body)

	for _, cand := range emailextract.Extract(html) {
		st.mu.Lock()
		if _, ok := st.emails[cand.Normalized]; !ok {
			st.emails[cand.Normalized] = storage.PendingEmail{
				RawEmail:        cand.Raw,
				NormalizedEmail: cand.Normalized,
				PageID:          pageID,
			}
			health.EmailsExtractedTotal.Inc()
		}
		st.mu.Unlock()
	}

	if entry.depth >= c.maxDepth {
		return
	}

	links := linkextract.Extract(html, entry.url, st.baseHost)

	var priority, other []queueEntry

	st.mu.Lock()
	for _, link := range links {
		if _, seen := st.visited[link]; seen {
			continue
		}

		e := queueEntry{depth: entry.depth + 1, url: link}
		if isPriority(link) {
			priority = append(priority, e)
		} else {
			other = append(other, e)
		}
	}

	st.queue = append(st.queue, append(priority, other...)...)
	st.mu.Unlock()
}

func isPriority(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, tok := range priorityTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}

	return false
}
