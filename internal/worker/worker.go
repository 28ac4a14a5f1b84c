// Package worker implements the Worker Loop (spec.md §4.8): a
// long-lived loop that polls for work and invokes the Search Runner.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/storage"
)

const (
	defaultPollInterval = 5 * time.Second
	postSearchSleep      = 1 * time.Second
)

// SearchRunner is the subset of *runner.Runner the loop needs, kept as
// an interface so tests can substitute a fake.
type SearchRunner interface {
	Run(ctx context.Context, searchID int64, workerID string)
}

// WorkStore is the subset of *storage.DB the loop needs to find its
// next search.
type WorkStore interface {
	NextSearchToWork(ctx context.Context) (*storage.Search, error)
}

// Loop polls WorkStore for searches and dispatches them to a
// SearchRunner until ctx is cancelled.
type Loop struct {
	store        WorkStore
	runner       SearchRunner
	logger       *zerolog.Logger
	workerID     string
	pollInterval time.Duration
}

// New builds a Loop. pollInterval <= 0 falls back to the spec default
// of 5s.
func New(store WorkStore, runner SearchRunner, logger *zerolog.Logger, workerID string, pollInterval time.Duration) *Loop {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Loop{store: store, runner: runner, logger: logger, workerID: workerID, pollInterval: pollInterval}
}

// Run blocks until ctx is cancelled. It never returns an error; any
// failure in a single iteration is logged and followed by the usual
// poll-interval sleep (spec.md §4.8 step 4).
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sleep := l.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// tick runs one iteration of the loop and returns how long to sleep
// before the next one.
func (l *Loop) tick(ctx context.Context) time.Duration {
	search, err := l.store.NextSearchToWork(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to poll for next search")
		return l.pollInterval
	}

	if search == nil {
		return l.pollInterval
	}

	l.runner.Run(ctx, search.ID, l.workerID)

	return postSearchSleep
}
