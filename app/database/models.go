package database

import (
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
)

type Feed struct {
	ID            string // Database UUID
	Name          string // Configuration feed identifier derived from filename
	FeedURL       string // Atom feed URL from configuration
	Link          string // Homepage URL from the feed's <link> element
	Title         string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	FeedUpdatedAt *time.Time // Feed's own <updated> value
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type FilingStatus string

const (
	FilingStatusPending FilingStatus = "pending"
	FilingStatusSuccess FilingStatus = "success"
	FilingStatusSkipped FilingStatus = "skipped" // no sections to read; never retried
	FilingStatusFailed  FilingStatus = "failed"
)

type Filing struct {
	ID              string
	FeedID          string
	FeedName        string
	AccessionNumber string
	Title           string
	Company         string
	Link            string // filing index page
	SubmissionURL   string // full text submission
	ItemCodes       []string
	PublishedAt     time.Time
	Status          FilingStatus
	Error           string
	Signature       string
	Attempts        int
	ExtractedAt     *time.Time
	CreatedAt       time.Time

	// Loaded only when results are requested.
	Items       []filing.Item
	Exhibits    []filing.Exhibit
	Diagnostics []filing.Diagnostic
}

// Result rebuilds the extraction result from a stored filing.
func (f *Filing) Result() *filing.Result {
	return &filing.Result{
		Company:     f.Company,
		Link:        f.SubmissionURL,
		Items:       f.Items,
		Signature:   f.Signature,
		Exhibits:    f.Exhibits,
		Diagnostics: f.Diagnostics,
	}
}

type FilingStats struct {
	Total   int
	Pending int
	Success int
	Skipped int
	Failed  int
}
