package database

import (
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
)

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feedName, feedURL string) error
	UpdateFeedMetadata(feedName string, title string, link string, feedUpdatedAt *time.Time, nextFetch time.Time) error
}

// NewFiling is a feed entry accepted for extraction.
type NewFiling struct {
	AccessionNumber string
	Title           string
	Company         string
	Link            string
	SubmissionURL   string
	ItemCodes       []string
	PublishedAt     time.Time
}

type ListFilingsOptions struct {
	FeedName    string       // empty for every feed
	Status      FilingStatus // empty for every status
	Limit       int
	WithResults bool
}

type FilingRepository interface {
	CheckDuplicate(accessionNumber string) (bool, error)
	CreateFiling(feedName string, f NewFiling) (string, error)

	GetFiling(accessionNumber string) (*Filing, error)
	ListFilings(opts ListFilingsOptions) ([]Filing, error)
	GetFilingsForExtraction(feedName string, maxAttempts int, limit int) ([]Filing, error)
	GetFilingStats() (FilingStats, error)

	SaveResult(filingID string, status FilingStatus, result *filing.Result, errorMsg string) error
	UpdateExtractionStatus(filingID string, status FilingStatus, errorMsg string) error
}
