package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*SQLiteFeedRepository)(nil)

type SQLiteFeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *SQLiteFeedRepository {
	return &SQLiteFeedRepository{db: db}
}

// UpsertFeed registers a configured feed or updates its URL.
func (r *SQLiteFeedRepository) UpsertFeed(feedName, feedURL string) error {
	now := unixTime(time.Now())
	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, feed_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			updated_at = excluded.updated_at
	`, uuid.NewString(), feedName, feedURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

// UpdateFeedMetadata stores what the last successful fetch returned and when the
// feed is due again.
func (r *SQLiteFeedRepository) UpdateFeedMetadata(feedName string, title string, link string, feedUpdatedAt *time.Time, nextFetch time.Time) error {
	now := unixTime(time.Now())
	res, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, feed_updated_at = ?, last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, title, link, nullableUnix(feedUpdatedAt), now, unixTime(nextFetch), now, feedName)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feed '%s' not found", feedName)
	}

	return nil
}

func (r *SQLiteFeedRepository) GetFeed(feedName string) (*Feed, error) {
	var (
		feed                                    Feed
		lastFetchedAt, nextFetchAt, feedUpdated sql.NullInt64
		createdAt, updatedAt                    int64
	)

	err := r.db.QueryRow(`
		SELECT id, name, feed_url, link, title, last_fetched_at, next_fetch_at, feed_updated_at, created_at, updated_at
		FROM feeds
		WHERE name = ?
	`, feedName).Scan(
		&feed.ID, &feed.Name, &feed.FeedURL, &feed.Link, &feed.Title,
		&lastFetchedAt, &nextFetchAt, &feedUpdated, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	feed.LastFetchedAt = fromNullableUnix(lastFetchedAt)
	feed.NextFetchAt = fromNullableUnix(nextFetchAt)
	feed.FeedUpdatedAt = fromNullableUnix(feedUpdated)
	feed.CreatedAt = fromUnix(createdAt)
	feed.UpdatedAt = fromUnix(updatedAt)

	return &feed, nil
}

func (r *SQLiteFeedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
