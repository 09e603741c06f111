package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/tasks"
	"github.com/gin-gonic/gin"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	filingRepo database.FilingRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		filingRepo:  filingRepo,
		generator:   feed.NewGenerator(),
		configCache: configCache,
		scheduler:   scheduler,
	}
}

// GetFeed re-publishes the extracted filings of a feed as RSS.
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	feed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if feed == nil {
		slog.Error("Feed not found in database", "feed", name)
		c.Status(http.StatusNotFound)
		return
	}

	filings, err := h.filingRepo.ListFilings(database.ListFilingsOptions{
		FeedName:    name,
		Status:      database.FilingStatusSuccess,
		Limit:       feedConfig.Settings.MaxItems,
		WithResults: true,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_filings", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*feed, filings, feedConfig.Settings.RequiredItems)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(filings)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", feed.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

// GetFilingReport serves the line report of one filing at /filings/<accession>.txt.
func (h *Handler) GetFilingReport(c *gin.Context) {
	accession, ok := strings.CutSuffix(c.Param("file"), ".txt")
	if !ok || accession == "" {
		c.Status(http.StatusNotFound)
		return
	}

	f, err := h.filingRepo.GetFiling(accession)
	if err != nil {
		slog.Error("Database error", "operation", "get_filing", "accession", accession, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if f == nil || f.ExtractedAt == nil {
		c.Status(http.StatusNotFound)
		return
	}

	var b strings.Builder
	if err := f.Result().WriteText(&b); err != nil {
		slog.Error("Report rendering error", "accession", accession, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.String(http.StatusOK, b.String())
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.filingRepo.GetFilingStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_filing_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filings": gin.H{
			"total":   stats.Total,
			"pending": stats.Pending,
			"success": stats.Success,
			"skipped": stats.Skipped,
			"failed":  stats.Failed,
		},
		"enabled_feeds": len(h.configCache.GetEnabledConfigs()),
	})
}

func (h *Handler) APIListFilings(c *gin.Context) {
	opts := database.ListFilingsOptions{
		FeedName: c.Query("feed"),
		Status:   database.FilingStatus(c.Query("status")),
		Limit:    100,
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		opts.Limit = n
	}

	switch opts.Status {
	case "", database.FilingStatusPending, database.FilingStatusSuccess, database.FilingStatusSkipped, database.FilingStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status parameter"})
		return
	}

	filings, err := h.filingRepo.ListFilings(opts)
	if err != nil {
		slog.Error("Database error", "operation", "list_filings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	resp := make([]filingResponse, 0, len(filings))
	for _, f := range filings {
		resp = append(resp, newFilingResponse(f, false))
	}

	c.JSON(http.StatusOK, gin.H{
		"filings": resp,
		"total":   len(resp),
	})
}

func (h *Handler) APIGetFiling(c *gin.Context) {
	accession := c.Param("accession")

	f, err := h.filingRepo.GetFiling(accession)
	if err != nil {
		slog.Error("Database error", "operation", "get_filing", "accession", accession, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Filing not found"})
		return
	}

	c.JSON(http.StatusOK, newFilingResponse(*f, true))
}

// APIReextractFiling puts a filing back in the extraction queue with a fresh
// attempt budget.
func (h *Handler) APIReextractFiling(c *gin.Context) {
	accession := c.Param("accession")

	f, err := h.filingRepo.GetFiling(accession)
	if err != nil {
		slog.Error("Database error", "operation", "get_filing", "accession", accession, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Filing not found"})
		return
	}

	if err := h.filingRepo.UpdateExtractionStatus(f.ID, database.FilingStatusPending, ""); err != nil {
		slog.Error("Database error", "operation", "update_extraction_status", "accession", accession, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.scheduler.EnqueueExtraction(f.FeedName); err != nil {
		slog.Error("Error enqueueing extraction task", "feed", f.FeedName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue extraction task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Filing queued for extraction",
		"filing": gin.H{
			"accession_number": f.AccessionNumber,
			"feed":             f.FeedName,
		},
	})
}
