package api

import (
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
	"github.com/MegaManSec/SEC-Feed-Parser/app/tasks"
)

type GeneratorInterface interface {
	Run(feed database.Feed, filings []database.Filing, requiredItems []string) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	filingRepo  database.FilingRepository
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}

type filingResponse struct {
	AccessionNumber string         `json:"accession_number"`
	Feed            string         `json:"feed"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Link            string         `json:"link"`
	SubmissionURL   string         `json:"submission_url"`
	ItemCodes       []string       `json:"item_codes"`
	PublishedAt     time.Time      `json:"published_at"`
	Status          string         `json:"status"`
	Error           string         `json:"error,omitempty"`
	Attempts        int            `json:"attempts"`
	ExtractedAt     *time.Time     `json:"extracted_at,omitempty"`
	Result          *filing.Result `json:"result,omitempty"`
}

func newFilingResponse(f database.Filing, withResult bool) filingResponse {
	resp := filingResponse{
		AccessionNumber: f.AccessionNumber,
		Feed:            f.FeedName,
		Title:           f.Title,
		Company:         f.Company,
		Link:            f.Link,
		SubmissionURL:   f.SubmissionURL,
		ItemCodes:       f.ItemCodes,
		PublishedAt:     f.PublishedAt,
		Status:          string(f.Status),
		Error:           f.Error,
		Attempts:        f.Attempts,
		ExtractedAt:     f.ExtractedAt,
	}
	if withResult && f.ExtractedAt != nil {
		resp.Result = f.Result()
	}
	return resp
}
