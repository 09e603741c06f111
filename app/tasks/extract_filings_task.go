package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
)

// ExtractFilingsTask downloads the full text submission of every queued filing
// of a feed and stores what the extractor makes of it.
type ExtractFilingsTask struct {
	Task
	FeedConfig *feed.Config
	httpClient *http.Client
	extractor  *filing.Extractor
	filingRepo database.FilingRepository
	userAgent  string

	// Results holds the filings extracted successfully by the last run.
	Results []*filing.Result
}

func NewExtractFilingsTask(feedName string, feedConfig *feed.Config, httpClient *http.Client, extractor *filing.Extractor,
	filingRepo database.FilingRepository, userAgent string) *ExtractFilingsTask {
	return &ExtractFilingsTask{
		Task:       NewTask(TaskTypeExtractFilings, feedName),
		FeedConfig: feedConfig,
		httpClient: httpClient,
		extractor:  extractor,
		filingRepo: filingRepo,
		userAgent:  userAgent,
	}
}

func (t *ExtractFilingsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.Results = nil

	filings, err := t.filingRepo.GetFilingsForExtraction(t.FeedName, DefaultMaxRetries, t.FeedConfig.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get filings for extraction: %w", err)
	}

	if len(filings) == 0 {
		slog.Debug("No filings need extraction", "feed", t.FeedName)
		return nil
	}

	successCount := 0
	skippedCount := 0
	errorCount := 0

	for _, f := range filings {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, status, err := t.extractFiling(ctx, f)
		switch status {
		case database.FilingStatusSuccess:
			successCount++
		case database.FilingStatusSkipped:
			skippedCount++
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errorCount++
			slog.Error("Failed to extract filing", "accession", f.AccessionNumber, "url", f.SubmissionURL, "error", err)
			if err := t.filingRepo.UpdateExtractionStatus(f.ID, database.FilingStatusFailed, err.Error()); err != nil {
				slog.Error("Failed to update extraction status", "accession", f.AccessionNumber, "error", err)
			}
			continue
		}

		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		if err := t.filingRepo.SaveResult(f.ID, status, result, errMsg); err != nil {
			return fmt.Errorf("failed to save result for %s: %w", f.AccessionNumber, err)
		}
		if status == database.FilingStatusSuccess {
			t.Results = append(t.Results, result)
		}
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"success", successCount,
		"skipped", skippedCount,
		"errors", errorCount)

	return nil
}

// extractFiling returns the status the attempt ends in. A submission without
// sections is skipped for good; everything else that goes wrong is retried on a
// later run.
func (t *ExtractFilingsTask) extractFiling(ctx context.Context, f database.Filing) (*filing.Result, database.FilingStatus, error) {
	if f.SubmissionURL == "" {
		return nil, database.FilingStatusFailed, fmt.Errorf("filing has no submission URL")
	}

	timeout := time.Duration(t.FeedConfig.Settings.Timeout) * time.Second
	data, err := fetch(ctx, t.httpClient, f.SubmissionURL, t.userAgent, timeout)
	if err != nil {
		return nil, database.FilingStatusFailed, fmt.Errorf("failed to fetch submission: %w", err)
	}

	result, err := t.extractor.Run(ctx, filing.Submission{
		Title: f.Title,
		Link:  f.SubmissionURL,
		Text:  string(data),
	})
	if errors.Is(err, filing.ErrNoSectionsFound) {
		return result, database.FilingStatusSkipped, err
	}
	if err != nil {
		return nil, database.FilingStatusFailed, fmt.Errorf("failed to extract filing: %w", err)
	}

	slog.Debug("Filing extracted", "accession", f.AccessionNumber, "items", len(result.Items), "exhibits", len(result.Exhibits), "diagnostics", len(result.Diagnostics))
	return result, database.FilingStatusSuccess, nil
}
