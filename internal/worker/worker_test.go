package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/storage"
)

type fakeWorkStore struct {
	mu      sync.Mutex
	queue   []*storage.Search
	err     error
	polls   int
}

func (f *fakeWorkStore) NextSearchToWork(_ context.Context) (*storage.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++

	if f.err != nil {
		return nil, f.err
	}

	if len(f.queue) == 0 {
		return nil, nil
	}

	s := f.queue[0]
	f.queue = f.queue[1:]

	return s, nil
}

type fakeRunner struct {
	mu  sync.Mutex
	ran []int64
}

func (f *fakeRunner) Run(_ context.Context, searchID int64, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ran = append(f.ran, searchID)
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr)
	return &l
}

func TestTickRunsFoundSearchAndSleepsShort(t *testing.T) {
	store := &fakeWorkStore{queue: []*storage.Search{{ID: 9}}}
	runner := &fakeRunner{}

	l := New(store, runner, testLogger(), "worker-1", time.Second)

	sleep := l.tick(context.Background())

	if sleep != postSearchSleep {
		t.Errorf("sleep = %v, want %v", sleep, postSearchSleep)
	}

	if len(runner.ran) != 1 || runner.ran[0] != 9 {
		t.Errorf("runner.ran = %v, want [9]", runner.ran)
	}
}

func TestTickIdleSleepsPollInterval(t *testing.T) {
	store := &fakeWorkStore{}
	runner := &fakeRunner{}

	l := New(store, runner, testLogger(), "worker-1", 3*time.Second)

	sleep := l.tick(context.Background())

	if sleep != 3*time.Second {
		t.Errorf("sleep = %v, want 3s", sleep)
	}

	if len(runner.ran) != 0 {
		t.Errorf("expected no runs, got %v", runner.ran)
	}
}

func TestTickErrorSleepsPollInterval(t *testing.T) {
	store := &fakeWorkStore{err: errors.New("db down")}
	runner := &fakeRunner{}

	l := New(store, runner, testLogger(), "worker-1", 2*time.Second)

	sleep := l.tick(context.Background())

	if sleep != 2*time.Second {
		t.Errorf("sleep = %v, want 2s", sleep)
	}
}

func TestNewDefaultsPollInterval(t *testing.T) {
	l := New(&fakeWorkStore{}, &fakeRunner{}, testLogger(), "worker-1", 0)
	if l.pollInterval != defaultPollInterval {
		t.Errorf("pollInterval = %v, want %v", l.pollInterval, defaultPollInterval)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &fakeWorkStore{}
	runner := &fakeRunner{}

	l := New(store, runner, testLogger(), "worker-1", 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
