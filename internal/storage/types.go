package storage

import (
	"time"
	"unicode/utf8"
)

// Search lifecycle states (spec.md §3, §4.8).
const (
	SearchStatusPending    = "pending"
	SearchStatusInProgress = "in_progress"
	SearchStatusPaused     = "paused"
	SearchStatusCompleted  = "completed"
	SearchStatusFailed     = "failed"
	SearchStatusCancelled  = "cancelled"
)

// Domain lifecycle states (spec.md §3, §4.5).
const (
	DomainStatusPending  = "pending"
	DomainStatusCrawling = "crawling"
	DomainStatusCompleted = "completed"
	DomainStatusFailed    = "failed"
)

const (
	maxPageURLLen     = 1000
	maxEmailLen       = 255
	maxErrorMessageLen = 500
)

// Search is one batch email-harvest request (spec.md §3).
type Search struct {
	ID           int64
	BatchName    *string
	TotalDomains int
	Status       string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Domain is one domain queued for crawling within a Search.
type Domain struct {
	ID           int64
	SearchID     int64
	DomainName   string
	URL          string
	Status       string
	PagesCrawled int
	EmailsFound  int
	ErrorMessage *string
	WorkerID     *string
	LockedAt     *time.Time
	UpdatedAt    time.Time
}

// Page is one fetched URL belonging to a Domain crawl.
type Page struct {
	ID           int64
	DomainID     int64
	URL          string
	StatusCode   int
	ContentType  *string
	ErrorMessage *string
	ExtractedAt  time.Time
}

// Email is one deduplicated extracted address.
type Email struct {
	ID              int64
	DomainID        int64
	PageID          int64
	RawEmail        string
	NormalizedEmail string
	ExtractedAt     time.Time
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
