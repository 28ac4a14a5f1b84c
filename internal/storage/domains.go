package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// PendingDomains returns Domains with status pending for a Search,
// ordered by id ascending (spec.md §4.7 step 2).
func (db *DB) PendingDomains(ctx context.Context, searchID int64) ([]Domain, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, search_id, domain, url, status, pages_crawled, emails_found,
		       error_message, worker_id, locked_at, updated_at
		FROM domains WHERE search_id = $1 AND status = $2 ORDER BY id ASC
	`, searchID, DomainStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDomains(rows)
}

// ListDomains returns Domains for a Search, optionally filtered by
// status, paginated (GET /api/searches/{id}/domains).
func (db *DB) ListDomains(ctx context.Context, searchID int64, status string, limit, offset int) ([]Domain, error) {
	var rows pgx.Rows

	var err error

	if status != "" {
		rows, err = db.Pool.Query(ctx, `
			SELECT id, search_id, domain, url, status, pages_crawled, emails_found,
			       error_message, worker_id, locked_at, updated_at
			FROM domains WHERE search_id = $1 AND status = $2
			ORDER BY id ASC LIMIT $3 OFFSET $4
		`, searchID, status, limit, offset)
	} else {
		rows, err = db.Pool.Query(ctx, `
			SELECT id, search_id, domain, url, status, pages_crawled, emails_found,
			       error_message, worker_id, locked_at, updated_at
			FROM domains WHERE search_id = $1
			ORDER BY id ASC LIMIT $2 OFFSET $3
		`, searchID, limit, offset)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDomains(rows)
}

func scanDomains(rows pgx.Rows) ([]Domain, error) {
	var out []Domain

	for rows.Next() {
		var d Domain
		if err := rows.Scan(
			&d.ID, &d.SearchID, &d.DomainName, &d.URL, &d.Status, &d.PagesCrawled, &d.EmailsFound,
			&d.ErrorMessage, &d.WorkerID, &d.LockedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	return out, rows.Err()
}

// ClaimDomain transitions a Domain to crawling with the given worker_id
// and locked_at = now() (spec.md §4.5 step 1). The claim is optimistic —
// it does not re-check status (spec.md §5).
func (db *DB) ClaimDomain(ctx context.Context, domainID int64, workerID string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE domains SET status = $1, worker_id = $2, locked_at = now(), updated_at = now()
		WHERE id = $3
	`, DomainStatusCrawling, workerID, domainID)

	return err
}

// CompleteDomain transitions a Domain to completed, recording final
// counts and clearing the lock fields (spec.md §4.5 step 4).
func (db *DB) CompleteDomain(ctx context.Context, domainID int64, pagesCrawled, emailsFound int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE domains
		SET status = $1, pages_crawled = $2, emails_found = $3,
		    worker_id = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $4
	`, DomainStatusCompleted, pagesCrawled, emailsFound, domainID)

	return err
}

// FailDomain transitions a Domain to failed, storing up to 500
// characters of errMsg and clearing the lock fields (spec.md §4.5: "on
// any uncaught error inside steps 1-3").
func (db *DB) FailDomain(ctx context.Context, domainID int64, errMsg string) error {
	truncated := truncate(errMsg, maxErrorMessageLen)

	_, err := db.Pool.Exec(ctx, `
		UPDATE domains
		SET status = $1, error_message = $2, worker_id = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $3
	`, DomainStatusFailed, truncated, domainID)

	return err
}
