// Package runner implements the Search Runner (spec.md §4.7): fans a
// Search's pending Domains out to the Domain Crawler in bounded
// batches.
package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/health"
	"github.com/emailengineer/email-extractor/internal/storage"
)

const defaultMaxConcurrent = 1000

// DomainCrawler is the subset of *crawler.Crawler the runner depends on,
// kept as an interface so tests can substitute a fake.
type DomainCrawler interface {
	Crawl(ctx context.Context, domainID int64, startURL, workerID string)
}

// SearchStore is the subset of *storage.DB the runner needs, kept as an
// interface so tests can substitute a fake instead of a live database.
type SearchStore interface {
	SetSearchInProgress(ctx context.Context, id int64) error
	SetSearchCompleted(ctx context.Context, id int64) error
	SetSearchFailed(ctx context.Context, id int64) error
	PendingDomains(ctx context.Context, searchID int64) ([]storage.Domain, error)
}

// Runner drives one Search through its full lifecycle.
type Runner struct {
	store         SearchStore
	crawler       DomainCrawler
	logger        *zerolog.Logger
	maxConcurrent int
}

// New builds a Runner. maxConcurrent <= 0 falls back to the spec
// default of 1000.
func New(store SearchStore, crawler DomainCrawler, logger *zerolog.Logger, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &Runner{store: store, crawler: crawler, logger: logger, maxConcurrent: maxConcurrent}
}

// Run executes the Search Runner's four steps for one search (spec.md
// §4.7). Errors in steps 1-3 set the search to failed and are not
// returned to the caller — the Worker Loop only needs to know the
// attempt happened, not how it ended.
func (r *Runner) Run(ctx context.Context, searchID int64, workerID string) {
	logger := r.logger.With().Int64("search_id", searchID).Str("worker_id", workerID).Logger()

	if err := r.store.SetSearchInProgress(ctx, searchID); err != nil {
		logger.Error().Err(err).Msg("failed to mark search in_progress")
		r.fail(ctx, &logger, searchID)

		return
	}

	domains, err := r.store.PendingDomains(ctx, searchID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list pending domains")
		r.fail(ctx, &logger, searchID)

		return
	}

	if len(domains) == 0 {
		return
	}

	health.DomainsPending.Set(float64(len(domains)))

	for start := 0; start < len(domains); start += r.maxConcurrent {
		end := start + r.maxConcurrent
		if end > len(domains) {
			end = len(domains)
		}

		r.runBatch(ctx, domains[start:end], workerID)

		health.DomainsPending.Set(float64(len(domains) - end))
	}

	if err := r.store.SetSearchCompleted(ctx, searchID); err != nil {
		logger.Error().Err(err).Msg("failed to mark search completed")
	}
}

// runBatch runs one batch of Domain Crawls concurrently and waits for
// all of them before returning (spec.md §4.7 step 3).
func (r *Runner) runBatch(ctx context.Context, domains []storage.Domain, workerID string) {
	var wg sync.WaitGroup

	for _, d := range domains {
		d := d

		wg.Add(1)

		go func() {
			defer wg.Done()
			r.crawler.Crawl(ctx, d.ID, d.URL, workerID)
		}()
	}

	wg.Wait()
}

func (r *Runner) fail(ctx context.Context, logger *zerolog.Logger, searchID int64) {
	if err := r.store.SetSearchFailed(ctx, searchID); err != nil {
		logger.Error().Err(err).Msg("failed to mark search failed")
	}
}
