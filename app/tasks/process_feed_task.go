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
)

// ProcessFeedTask fetches the feed, drops entries already stored or filtered out
// and queues the rest for extraction.
type ProcessFeedTask struct {
	Task
	FeedConfig *feed.Config
	httpClient *http.Client
	parser     *feed.Parser
	filterer   *feed.Filterer
	feedRepo   database.FeedRepository
	filingRepo database.FilingRepository
	userAgent  string
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, httpClient *http.Client, parser *feed.Parser,
	filterer *feed.Filterer, feedRepo database.FeedRepository, filingRepo database.FilingRepository, userAgent string) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig: feedConfig,
		httpClient: httpClient,
		parser:     parser,
		filterer:   filterer,
		feedRepo:   feedRepo,
		filingRepo: filingRepo,
		userAgent:  userAgent,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	timeout := time.Duration(t.FeedConfig.Settings.Timeout) * time.Second
	data, err := fetch(ctx, t.httpClient, t.FeedConfig.URL, t.userAgent, timeout)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, entries, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	if err := t.storeFeedMetadata(metadata); err != nil {
		return err
	}

	if maxItems := t.FeedConfig.Settings.MaxItems; maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	var fresh []feed.Entry
	duplicateCount := 0
	for _, entry := range entries {
		if entry.AccessionNumber == "" {
			slog.Warn("Entry has no accession number, skipping", "feed", t.FeedName, "link", entry.Link)
			continue
		}

		isDuplicate, err := t.filingRepo.CheckDuplicate(entry.AccessionNumber)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			duplicateCount++
			continue
		}
		fresh = append(fresh, entry)
	}

	filteredCount := 0
	newCount := 0
	for _, entry := range t.filterer.Run(fresh, t.FeedConfig) {
		if entry.IsFiltered {
			filteredCount++
			slog.Debug("Entry filtered", "feed", t.FeedName, "accession", entry.AccessionNumber, "reason", entry.FilterReason)
			continue
		}

		_, err := t.filingRepo.CreateFiling(t.FeedName, database.NewFiling{
			AccessionNumber: entry.AccessionNumber,
			Title:           entry.Title,
			Company:         entry.Company,
			Link:            entry.Link,
			SubmissionURL:   feed.SubmissionURL(entry.Link),
			ItemCodes:       entry.ItemCodes,
			PublishedAt:     entry.PublishedAt,
		})
		if errors.Is(err, database.ErrFilingExists) {
			duplicateCount++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store filing: %w", err)
		}
		newCount++
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(entries),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"new", newCount)

	return nil
}

func (t *ProcessFeedTask) storeFeedMetadata(metadata *feed.Metadata) error {
	nextFetch := time.Now().UTC().Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)

	err := t.feedRepo.UpdateFeedMetadata(t.FeedName, metadata.Title, metadata.Link, metadata.FeedUpdatedAt, nextFetch)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata and next fetch time: %w", err)
	}

	return nil
}
