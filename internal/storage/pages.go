package storage

import "context"

// InsertPage records a fetched page and returns its id. Persistence
// failures are the caller's to log and skip (spec.md §4.6: "writes are
// best-effort... must not abort the crawl of other URLs").
func (db *DB) InsertPage(ctx context.Context, domainID int64, rawURL string, statusCode int, contentType, errMsg *string) (int64, error) {
	var id int64

	truncatedURL := truncate(rawURL, maxPageURLLen)

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO pages (domain_id, url, status_code, content_type, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, domainID, truncatedURL, statusCode, contentType, errMsg).Scan(&id)

	return id, err
}

// EmailsForSearch returns one page of the Emails belonging to any Domain
// in the given Search, ordered by id, at most limit rows starting at
// offset (GET /api/searches/{id}/emails).
func (db *DB) EmailsForSearch(ctx context.Context, searchID int64, limit, offset int) ([]Email, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT e.id, e.domain_id, e.page_id, e.raw_email, e.normalized_email, e.extracted_at
		FROM emails e
		JOIN domains d ON e.domain_id = d.id
		WHERE d.search_id = $1
		ORDER BY e.id ASC LIMIT $2 OFFSET $3
	`, searchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEmails(rows)
}

// EmailsForDomain returns one page of the Emails extracted from one
// Domain, ordered by id, at most limit rows starting at offset (GET
// /api/domains/{id}/emails).
func (db *DB) EmailsForDomain(ctx context.Context, domainID int64, limit, offset int) ([]Email, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, domain_id, page_id, raw_email, normalized_email, extracted_at
		FROM emails WHERE domain_id = $1 ORDER BY id ASC LIMIT $2 OFFSET $3
	`, domainID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEmails(rows)
}

func scanEmails(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Email, error) {
	var out []Email

	for rows.Next() {
		var e Email
		if err := rows.Scan(&e.ID, &e.DomainID, &e.PageID, &e.RawEmail, &e.NormalizedEmail, &e.ExtractedAt); err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
