package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateSearch inserts a Search row and one pending Domain row per
// submitted domain (spec.md §6: "Search creation also inserts one Domain
// row per submitted domain with url = https://<domain>").
func (db *DB) CreateSearch(ctx context.Context, batchName *string, domains []string) (*Search, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var search Search

	err = tx.QueryRow(ctx, `
		INSERT INTO searches (batch_name, total_domains, status)
		VALUES ($1, $2, $3)
		RETURNING id, batch_name, total_domains, status, created_at, started_at, completed_at
	`, batchName, len(domains), SearchStatusPending).Scan(
		&search.ID, &search.BatchName, &search.TotalDomains, &search.Status,
		&search.CreatedAt, &search.StartedAt, &search.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert search: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range domains {
		batch.Queue(`
			INSERT INTO domains (search_id, domain, url, status)
			VALUES ($1, $2, $3, $4)
		`, search.ID, d, "https://"+d, DomainStatusPending)
	}

	br := tx.SendBatch(ctx, batch)
	for range domains {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert domain: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &search, nil
}

// GetSearch fetches one Search by id. It returns pgx.ErrNoRows when not
// found.
func (db *DB) GetSearch(ctx context.Context, id int64) (*Search, error) {
	var s Search

	err := db.Pool.QueryRow(ctx, `
		SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
		FROM searches WHERE id = $1
	`, id).Scan(&s.ID, &s.BatchName, &s.TotalDomains, &s.Status, &s.CreatedAt, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// ListSearches returns Searches optionally filtered by status, newest
// first, paginated.
func (db *DB) ListSearches(ctx context.Context, status string, limit, offset int) ([]Search, error) {
	var rows pgx.Rows

	var err error

	if status != "" {
		rows, err = db.Pool.Query(ctx, `
			SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
			FROM searches WHERE status = $1 ORDER BY id DESC LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		rows, err = db.Pool.Query(ctx, `
			SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
			FROM searches ORDER BY id DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Search

	for rows.Next() {
		var s Search
		if err := rows.Scan(&s.ID, &s.BatchName, &s.TotalDomains, &s.Status, &s.CreatedAt, &s.StartedAt, &s.CompletedAt); err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	return out, rows.Err()
}

// SetSearchInProgress transitions a Search to in_progress with
// started_at = now() (spec.md §4.7 step 1).
func (db *DB) SetSearchInProgress(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE searches SET status = $1, started_at = now() WHERE id = $2
	`, SearchStatusInProgress, id)

	return err
}

// SetSearchCompleted transitions a Search to completed with
// completed_at = now() (spec.md §4.7 step 4).
func (db *DB) SetSearchCompleted(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE searches SET status = $1, completed_at = now() WHERE id = $2
	`, SearchStatusCompleted, id)

	return err
}

// SetSearchFailed transitions a Search to failed (spec.md §4.7: "on an
// uncaught error anywhere in steps 1-3, set search status to failed").
func (db *DB) SetSearchFailed(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx, `UPDATE searches SET status = $1 WHERE id = $2`, SearchStatusFailed, id)
	return err
}

// PauseSearch flips an in_progress Search to paused. It reports false if
// the Search is not currently in_progress.
func (db *DB) PauseSearch(ctx context.Context, id int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE searches SET status = $1 WHERE id = $2 AND status = $3
	`, SearchStatusPaused, id, SearchStatusInProgress)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// ResumeSearch flips a paused Search back to in_progress. It reports
// false if the Search is not currently paused.
func (db *DB) ResumeSearch(ctx context.Context, id int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE searches SET status = $1 WHERE id = $2 AND status = $3
	`, SearchStatusInProgress, id, SearchStatusPaused)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// terminalSearchStatuses are states CancelSearch refuses to act on.
var terminalSearchStatuses = map[string]bool{
	SearchStatusCompleted: true,
	SearchStatusCancelled: true,
}

// CancelSearch sets a Search to cancelled and clears worker_id/locked_at
// on any of its crawling Domains (supplemented from original_source/
// api.py's cancel handler — see SPEC_FULL.md). It returns (found,
// alreadyTerminal, error).
func (db *DB) CancelSearch(ctx context.Context, id int64) (found, alreadyTerminal bool, err error) {
	search, err := db.GetSearch(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, false, nil
		}

		return false, false, err
	}

	if terminalSearchStatuses[search.Status] {
		return true, true, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return true, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE searches SET status = $1 WHERE id = $2`, SearchStatusCancelled, id); err != nil {
		return true, false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE domains SET worker_id = NULL, locked_at = NULL
		WHERE search_id = $1 AND status = $2
	`, id, DomainStatusCrawling); err != nil {
		return true, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return true, false, err
	}

	return true, false, nil
}

// NextSearchToWork implements the Worker Loop's polling query (spec.md
// §4.8 step 1): the oldest pending Search, or failing that, the oldest
// in_progress Search that still has a pending Domain.
func (db *DB) NextSearchToWork(ctx context.Context) (*Search, error) {
	var s Search

	err := db.Pool.QueryRow(ctx, `
		SELECT id, batch_name, total_domains, status, created_at, started_at, completed_at
		FROM searches WHERE status = $1 ORDER BY id ASC LIMIT 1
	`, SearchStatusPending).Scan(&s.ID, &s.BatchName, &s.TotalDomains, &s.Status, &s.CreatedAt, &s.StartedAt, &s.CompletedAt)
	if err == nil {
		return &s, nil
	}

	if err != pgx.ErrNoRows {
		return nil, err
	}

	err = db.Pool.QueryRow(ctx, `
		SELECT s.id, s.batch_name, s.total_domains, s.status, s.created_at, s.started_at, s.completed_at
		FROM searches s
		WHERE s.status = $1
		  AND EXISTS (SELECT 1 FROM domains d WHERE d.search_id = s.id AND d.status = $2)
		ORDER BY s.id ASC LIMIT 1
	`, SearchStatusInProgress, DomainStatusPending).Scan(
		&s.ID, &s.BatchName, &s.TotalDomains, &s.Status, &s.CreatedAt, &s.StartedAt, &s.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &s, nil
}

// SearchStatistics is the aggregate view served by GET
// /api/searches/{id}/statistics.
type SearchStatistics struct {
	TotalDomains     int
	PendingDomains   int
	CrawlingDomains  int
	CompletedDomains int
	FailedDomains    int
	PagesCrawled     int
	EmailsFound      int
	DurationSeconds  float64
}

// SearchStats aggregates per-domain counts for one Search, plus the
// Search's elapsed duration (spec.md §6: "aggregate counts + duration"),
// grounded on original_source/engine/api.py's
// TIMESTAMPDIFF(SECOND, s.started_at, COALESCE(s.completed_at, NOW())).
// A Search that has not started yet (started_at IS NULL) reports 0.
func (db *DB) SearchStats(ctx context.Context, searchID int64) (*SearchStatistics, error) {
	var stats SearchStatistics

	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(d.*),
			COUNT(d.*) FILTER (WHERE d.status = $2),
			COUNT(d.*) FILTER (WHERE d.status = $3),
			COUNT(d.*) FILTER (WHERE d.status = $4),
			COUNT(d.*) FILTER (WHERE d.status = $5),
			COALESCE(SUM(d.pages_crawled), 0),
			COALESCE(SUM(d.emails_found), 0),
			COALESCE(EXTRACT(EPOCH FROM (COALESCE(s.completed_at, now()) - s.started_at)), 0)
		FROM searches s
		LEFT JOIN domains d ON d.search_id = s.id
		WHERE s.id = $1
		GROUP BY s.id, s.started_at, s.completed_at
	`, searchID, DomainStatusPending, DomainStatusCrawling, DomainStatusCompleted, DomainStatusFailed).Scan(
		&stats.TotalDomains, &stats.PendingDomains, &stats.CrawlingDomains,
		&stats.CompletedDomains, &stats.FailedDomains, &stats.PagesCrawled, &stats.EmailsFound,
		&stats.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
