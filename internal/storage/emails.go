package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PendingEmail is one not-yet-persisted extraction, keyed by its
// normalized form in the Domain Crawler's in-memory map (spec.md §4.5).
type PendingEmail struct {
	RawEmail        string
	NormalizedEmail string
	PageID          int64
}

// FlushEmails batch-inserts extracted emails for one Domain, suppressing
// duplicates on (domain_id, normalized_email) the way spec.md's
// "INSERT ... IGNORE" maps onto Postgres (spec.md §4.5 step 3, §9).
// All entries are sent as one batch. It returns an error as soon as any
// queued insert fails, without reading the results of the entries after
// it; the caller logs that error.
func (db *DB) FlushEmails(ctx context.Context, domainID int64, pending []PendingEmail) (int, error) {
	if len(pending) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range pending {
		batch.Queue(`
			INSERT INTO emails (domain_id, page_id, raw_email, normalized_email)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (domain_id, normalized_email) DO NOTHING
		`, domainID, p.PageID, truncate(p.RawEmail, maxEmailLen), truncate(p.NormalizedEmail, maxEmailLen))
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	inserted := 0

	for range pending {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("flush emails: %w", err)
		}

		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}
