package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
)

var _ RunnerInterface = (*Runner)(nil)

// Runner runs the sync, process and extract tasks of every enabled feed one
// after another in the calling goroutine.
type Runner struct {
	feedRepo    database.FeedRepository
	filingRepo  database.FilingRepository
	configCache *feed.ConfigCache
	httpClient  *http.Client
	parser      *feed.Parser
	filterer    *feed.Filterer
	extractor   *filing.Extractor
	userAgent   string
}

func NewRunner(configCache *feed.ConfigCache, feedRepo database.FeedRepository, filingRepo database.FilingRepository,
	httpClient *http.Client, parser *feed.Parser, filterer *feed.Filterer, extractor *filing.Extractor, userAgent string) *Runner {
	return &Runner{
		feedRepo:    feedRepo,
		filingRepo:  filingRepo,
		configCache: configCache,
		httpClient:  httpClient,
		parser:      parser,
		filterer:    filterer,
		extractor:   extractor,
		userAgent:   userAgent,
	}
}

// Run writes the line report of every filing extracted during the run to w. A
// feed that fails is logged and the remaining feeds still run.
func (r *Runner) Run(ctx context.Context, w io.Writer) error {
	feedConfigs := r.configCache.GetEnabledConfigs()

	names := make([]string, 0, len(feedConfigs))
	for name := range feedConfigs {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		feedConfig := feedConfigs[name]

		results, err := r.runFeed(ctx, feedConfig)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Feed run failed", "feed", name, "error", err)
			failed++
			continue
		}

		for _, result := range results {
			if err := result.WriteText(w); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
	}

	if failed > 0 && failed == len(names) {
		return fmt.Errorf("all %d feeds failed", failed)
	}

	return nil
}

func (r *Runner) runFeed(ctx context.Context, feedConfig *feed.Config) ([]*filing.Result, error) {
	extractTask := NewExtractFilingsTask(feedConfig.Name, feedConfig, r.httpClient, r.extractor, r.filingRepo, r.userAgent)

	for _, task := range []TaskInterface{
		NewSyncFeedConfigTask(feedConfig.Name, feedConfig, r.feedRepo),
		NewProcessFeedTask(feedConfig.Name, feedConfig, r.httpClient, r.parser, r.filterer, r.feedRepo, r.filingRepo, r.userAgent),
		extractTask,
	} {
		task.Start()
		if err := task.Execute(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", task.GetType(), err)
		}
	}

	return extractTask.Results, nil
}
