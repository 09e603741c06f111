package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
	"github.com/google/uuid"
)

// ErrFilingExists is returned when a filing with the same accession number is
// already stored.
var ErrFilingExists = errors.New("filing already exists")

var _ FilingRepository = (*SQLiteFilingRepository)(nil)

const filingColumns = `
	f.id, f.feed_id, fe.name, f.accession_number, f.title, f.company, f.link, f.submission_url,
	f.item_codes, f.published_at, f.status, f.error, f.signature, f.attempts, f.extracted_at, f.created_at`

type SQLiteFilingRepository struct {
	db *DB
}

func NewFilingRepository(db *DB) *SQLiteFilingRepository {
	return &SQLiteFilingRepository{db: db}
}

func (r *SQLiteFilingRepository) CheckDuplicate(accessionNumber string) (bool, error) {
	var exists int
	err := r.db.QueryRow(`SELECT 1 FROM filings WHERE accession_number = ? LIMIT 1`, accessionNumber).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

// CreateFiling stores a pending filing for feedName and returns its id.
func (r *SQLiteFilingRepository) CreateFiling(feedName string, f NewFiling) (string, error) {
	var feedID string
	err := r.db.QueryRow(`SELECT id FROM feeds WHERE name = ?`, feedName).Scan(&feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("feed '%s' not found", feedName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get feed: %w", err)
	}

	id := uuid.NewString()
	res, err := r.db.Exec(`
		INSERT INTO filings (
			id, feed_id, accession_number, title, company, link, submission_url,
			item_codes, published_at, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (accession_number) DO NOTHING
	`, id, feedID, f.AccessionNumber, f.Title, f.Company, f.Link, f.SubmissionURL,
		strings.Join(f.ItemCodes, " "), unixTime(f.PublishedAt), string(FilingStatusPending), unixTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to create filing: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", ErrFilingExists
	}

	return id, nil
}

// GetFiling returns the filing with its stored results, or nil when unknown.
func (r *SQLiteFilingRepository) GetFiling(accessionNumber string) (*Filing, error) {
	filings, err := r.queryFilings(`
		SELECT `+filingColumns+`
		FROM filings f
		JOIN feeds fe ON fe.id = f.feed_id
		WHERE f.accession_number = ?
	`, accessionNumber)
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, nil
	}

	f := &filings[0]
	if err := r.loadResults(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *SQLiteFilingRepository) ListFilings(opts ListFilingsOptions) ([]Filing, error) {
	var (
		conditions []string
		args       []any
	)
	if opts.FeedName != "" {
		conditions = append(conditions, "fe.name = ?")
		args = append(args, opts.FeedName)
	}
	if opts.Status != "" {
		conditions = append(conditions, "f.status = ?")
		args = append(args, string(opts.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	filings, err := r.queryFilings(`
		SELECT `+filingColumns+`
		FROM filings f
		JOIN feeds fe ON fe.id = f.feed_id
		`+where+`
		ORDER BY f.published_at DESC, f.created_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}

	if opts.WithResults {
		for i := range filings {
			if err := r.loadResults(&filings[i]); err != nil {
				return nil, err
			}
		}
	}

	return filings, nil
}

// GetFilingsForExtraction returns pending filings and failed ones that still
// have attempts left, oldest first.
func (r *SQLiteFilingRepository) GetFilingsForExtraction(feedName string, maxAttempts int, limit int) ([]Filing, error) {
	return r.queryFilings(`
		SELECT `+filingColumns+`
		FROM filings f
		JOIN feeds fe ON fe.id = f.feed_id
		WHERE fe.name = ?
		  AND (f.status = ? OR (f.status = ? AND f.attempts < ?))
		ORDER BY f.published_at ASC
		LIMIT ?
	`, feedName, string(FilingStatusPending), string(FilingStatusFailed), maxAttempts, limit)
}

func (r *SQLiteFilingRepository) GetFilingStats() (FilingStats, error) {
	var stats FilingStats

	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM filings GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to get filing stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status FilingStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan filing stats: %w", err)
		}

		stats.Total += count
		switch status {
		case FilingStatusPending:
			stats.Pending = count
		case FilingStatusSuccess:
			stats.Success = count
		case FilingStatusSkipped:
			stats.Skipped = count
		case FilingStatusFailed:
			stats.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating filing stats: %w", err)
	}

	return stats, nil
}

// SaveResult replaces the stored results of a filing and records the outcome of
// the extraction attempt.
func (r *SQLiteFilingRepository) SaveResult(filingID string, status FilingStatus, result *filing.Result, errorMsg string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"filing_items", "filing_exhibits", "filing_diagnostics"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE filing_id = ?`, filingID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	signature := ""
	if result != nil {
		signature = result.Signature

		for i, item := range result.Items {
			if _, err := tx.Exec(`INSERT INTO filing_items (filing_id, position, item_id, text) VALUES (?, ?, ?, ?)`,
				filingID, i, item.ID, item.Text); err != nil {
				return fmt.Errorf("failed to store item %s: %w", item.ID, err)
			}
		}

		for i, exhibit := range result.Exhibits {
			if _, err := tx.Exec(`INSERT INTO filing_exhibits (filing_id, position, title, body, refers_to) VALUES (?, ?, ?, ?, ?)`,
				filingID, i, exhibit.Title, exhibit.Body, exhibit.RefersTo); err != nil {
				return fmt.Errorf("failed to store exhibit %s: %w", exhibit.Title, err)
			}
		}

		for i, d := range result.Diagnostics {
			if _, err := tx.Exec(`INSERT INTO filing_diagnostics (filing_id, position, kind, subject, message) VALUES (?, ?, ?, ?, ?)`,
				filingID, i, string(d.Kind), d.Subject, d.Message); err != nil {
				return fmt.Errorf("failed to store diagnostic: %w", err)
			}
		}
	}

	res, err := tx.Exec(`
		UPDATE filings
		SET status = ?, error = ?, signature = ?, attempts = attempts + 1, extracted_at = ?
		WHERE id = ?
	`, string(status), errorMsg, signature, unixTime(time.Now()), filingID)
	if err != nil {
		return fmt.Errorf("failed to update filing: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("filing '%s' not found", filingID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}

	return nil
}

// UpdateExtractionStatus records a failed attempt, or puts a filing back in the
// queue with a fresh attempt budget when status is pending.
func (r *SQLiteFilingRepository) UpdateExtractionStatus(filingID string, status FilingStatus, errorMsg string) error {
	query := `UPDATE filings SET status = ?, error = ?, attempts = attempts + 1 WHERE id = ?`
	if status == FilingStatusPending {
		query = `UPDATE filings SET status = ?, error = ?, attempts = 0 WHERE id = ?`
	}

	if _, err := r.db.Exec(query, string(status), errorMsg, filingID); err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	return nil
}

// queryFilings reads every row before returning so the single connection is
// free for follow-up queries.
func (r *SQLiteFilingRepository) queryFilings(query string, args ...any) ([]Filing, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filings: %w", err)
	}
	defer rows.Close()

	var filings []Filing
	for rows.Next() {
		var (
			f                      Filing
			itemCodes              string
			publishedAt, createdAt int64
			extractedAt            sql.NullInt64
		)
		err := rows.Scan(
			&f.ID, &f.FeedID, &f.FeedName, &f.AccessionNumber, &f.Title, &f.Company, &f.Link, &f.SubmissionURL,
			&itemCodes, &publishedAt, &f.Status, &f.Error, &f.Signature, &f.Attempts, &extractedAt, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filing row: %w", err)
		}

		f.ItemCodes = strings.Fields(itemCodes)
		f.PublishedAt = fromUnix(publishedAt)
		f.ExtractedAt = fromNullableUnix(extractedAt)
		f.CreatedAt = fromUnix(createdAt)
		filings = append(filings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating filing rows: %w", err)
	}

	return filings, nil
}

func (r *SQLiteFilingRepository) loadResults(f *Filing) error {
	items, err := r.db.Query(`SELECT item_id, text FROM filing_items WHERE filing_id = ? ORDER BY position`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to get filing items: %w", err)
	}
	f.Items = nil
	for items.Next() {
		var item filing.Item
		if err := items.Scan(&item.ID, &item.Text); err != nil {
			items.Close()
			return fmt.Errorf("failed to scan filing item: %w", err)
		}
		f.Items = append(f.Items, item)
	}
	items.Close()

	exhibits, err := r.db.Query(`SELECT title, body, refers_to FROM filing_exhibits WHERE filing_id = ? ORDER BY position`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to get filing exhibits: %w", err)
	}
	f.Exhibits = nil
	for exhibits.Next() {
		var exhibit filing.Exhibit
		if err := exhibits.Scan(&exhibit.Title, &exhibit.Body, &exhibit.RefersTo); err != nil {
			exhibits.Close()
			return fmt.Errorf("failed to scan filing exhibit: %w", err)
		}
		f.Exhibits = append(f.Exhibits, exhibit)
	}
	exhibits.Close()

	diagnostics, err := r.db.Query(`SELECT kind, subject, message FROM filing_diagnostics WHERE filing_id = ? ORDER BY position`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to get filing diagnostics: %w", err)
	}
	f.Diagnostics = nil
	for diagnostics.Next() {
		var d filing.Diagnostic
		if err := diagnostics.Scan(&d.Kind, &d.Subject, &d.Message); err != nil {
			diagnostics.Close()
			return fmt.Errorf("failed to scan filing diagnostic: %w", err)
		}
		f.Diagnostics = append(f.Diagnostics, d)
	}
	diagnostics.Close()

	return nil
}
