package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
)

const testUserAgent = "Acme Research research@example.com"

const acmeSubmission = `<SEC-DOCUMENT>
<DOCUMENT>
<TYPE>8-K
<SEQUENCE>1
<FILENAME>acme-8k.htm
<TEXT>
<html><body>
<p>Item 1.05 Material Cybersecurity Incidents</p>
<p>The company detected unauthorized access.</p>
<p>SIGNATURES</p>
<p>Jane Doe</p>
</body></html>
</TEXT>
</DOCUMENT>
</SEC-DOCUMENT>`

func atomEntry(baseURL, company, accession, items string) string {
	return fmt.Sprintf(`<entry>
<title>8-K - %s (Filer)</title>
<link rel="alternate" type="text/html" href="%s/Archives/edgar/data/%s-index.htm"/>
<summary type="html"> &lt;b&gt;AccNo:&lt;/b&gt; %s &lt;br&gt;%s</summary>
<updated>2024-01-19T16:30:00-05:00</updated>
<category scheme="https://www.sec.gov/" label="form type" term="8-K"/>
<id>urn:tag:sec.gov,2008:accession-number=%s</id>
</entry>
`, company, baseURL, accession, accession, items, accession)
}

// edgarServer serves an atom feed and the submissions it links to.
type edgarServer struct {
	*httptest.Server

	mu         sync.Mutex
	userAgents []string
	hits       map[string]int
}

func newEdgarServer(t *testing.T) *edgarServer {
	t.Helper()

	s := &edgarServer{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.userAgents = append(s.userAgents, r.UserAgent())
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		switch r.URL.Path {
		case "/atom":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings</title>
<updated>2024-01-19T17:00:00-05:00</updated>
%s%s%s%s</feed>`,
				atomEntry(s.URL, "ACME CORP (0000000001)", "0000950170-24-000001", "Item 1.05: Material Cybersecurity Incidents"),
				atomEntry(s.URL, "BETA INC (0000000002)", "0000000002-24-000007", "Item 5.02: Departure of Directors"),
				atomEntry(s.URL, "GAMMA LLC (0000000003)", "0000000003-24-000003", "Item 1.05: Material Cybersecurity Incidents"),
				atomEntry(s.URL, "DELTA CO (0000000004)", "0000000004-24-000004", "Item 1.05: Material Cybersecurity Incidents"))
		case "/Archives/edgar/data/0000950170-24-000001.txt":
			fmt.Fprint(w, acmeSubmission)
		case "/Archives/edgar/data/0000000003-24-000003.txt":
			fmt.Fprint(w, "plain text with no document blocks")
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *edgarServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type testEnv struct {
	server      *edgarServer
	feedRepo    *database.SQLiteFeedRepository
	filingRepo  *database.SQLiteFilingRepository
	configCache *feed.ConfigCache
	runner      *Runner
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := newEdgarServer(t)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	feedsDir := t.TempDir()
	config := fmt.Sprintf(`
url: "%s/atom"
settings:
  enabled: true
  timeout: 5
  required_items: ["1.05"]
`, server.URL)
	if err := os.WriteFile(filepath.Join(feedsDir, "cyber.yml"), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	configCache := feed.NewConfigCache(feedsDir)
	if err := configCache.Run(); err != nil {
		t.Fatalf("Failed to load feed configs: %v", err)
	}

	feedRepo := database.NewFeedRepository(db)
	filingRepo := database.NewFilingRepository(db)

	return &testEnv{
		server:      server,
		feedRepo:    feedRepo,
		filingRepo:  filingRepo,
		configCache: configCache,
		runner: NewRunner(configCache, feedRepo, filingRepo, server.Client(),
			feed.NewParser(), feed.NewFilterer(), filing.NewExtractor(), testUserAgent),
	}
}

func (e *testEnv) filing(t *testing.T, accession string) *database.Filing {
	t.Helper()

	f, err := e.filingRepo.GetFiling(accession)
	if err != nil {
		t.Fatalf("Failed to get filing %s: %v", accession, err)
	}
	return f
}

func TestRunner_Run(t *testing.T) {
	env := setupTestEnv(t)

	var out bytes.Buffer
	if err := env.runner.Run(context.Background(), &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "Company: ACME CORP (0000000001)\n") {
		t.Errorf("Expected report for ACME, got:\n%s", report)
	}
	if !strings.Contains(report, "Item: 1.05: Material Cybersecurity Incidents The company detected unauthorized access.\n") {
		t.Errorf("Expected item 1.05 text in report, got:\n%s", report)
	}
	if !strings.Contains(report, "Signature: Jane Doe\n") {
		t.Errorf("Expected signature in report, got:\n%s", report)
	}
	if strings.Contains(report, "GAMMA") || strings.Contains(report, "DELTA") {
		t.Errorf("Expected only successful extractions in report, got:\n%s", report)
	}

	acme := env.filing(t, "0000950170-24-000001")
	if acme == nil || acme.Status != database.FilingStatusSuccess {
		t.Fatalf("Expected ACME filing to be extracted, got %+v", acme)
	}
	if acme.SubmissionURL != env.server.URL+"/Archives/edgar/data/0000950170-24-000001.txt" {
		t.Errorf("Unexpected submission URL: %s", acme.SubmissionURL)
	}
	if len(acme.Items) != 1 || acme.Items[0].ID != "1.05" {
		t.Errorf("Expected stored item 1.05, got %+v", acme.Items)
	}

	if beta := env.filing(t, "0000000002-24-000007"); beta != nil {
		t.Errorf("Expected BETA to be filtered out, got %+v", beta)
	}

	gamma := env.filing(t, "0000000003-24-000003")
	if gamma == nil || gamma.Status != database.FilingStatusSkipped {
		t.Errorf("Expected GAMMA filing to be skipped, got %+v", gamma)
	}

	delta := env.filing(t, "0000000004-24-000004")
	if delta == nil || delta.Status != database.FilingStatusFailed {
		t.Fatalf("Expected DELTA filing to fail, got %+v", delta)
	}
	if delta.Attempts != 1 {
		t.Errorf("Expected 1 attempt for DELTA, got %d", delta.Attempts)
	}
	if !strings.Contains(delta.Error, "404") {
		t.Errorf("Expected HTTP error to be recorded, got %q", delta.Error)
	}

	feedRow, err := env.feedRepo.GetFeed("cyber")
	if err != nil || feedRow == nil {
		t.Fatalf("Expected feed row, got %v, %v", feedRow, err)
	}
	if feedRow.Title != "Latest Filings" {
		t.Errorf("Expected feed title 'Latest Filings', got '%s'", feedRow.Title)
	}
	if feedRow.NextFetchAt == nil {
		t.Error("Expected next fetch time to be set")
	}

	for _, ua := range env.server.userAgents {
		if ua != testUserAgent {
			t.Errorf("Expected user agent %q, got %q", testUserAgent, ua)
		}
	}
}

func TestRunner_Run_SecondRunRetriesOnlyFailures(t *testing.T) {
	env := setupTestEnv(t)

	if err := env.runner.Run(context.Background(), &bytes.Buffer{}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	var out bytes.Buffer
	if err := env.runner.Run(context.Background(), &out); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if out.Len() != 0 {
		t.Errorf("Expected no new reports, got:\n%s", out.String())
	}

	if got := env.server.hitCount("/Archives/edgar/data/0000950170-24-000001.txt"); got != 1 {
		t.Errorf("Expected ACME submission to be fetched once, got %d", got)
	}
	if got := env.server.hitCount("/Archives/edgar/data/0000000003-24-000003.txt"); got != 1 {
		t.Errorf("Expected skipped submission not to be retried, got %d fetches", got)
	}
	if got := env.server.hitCount("/Archives/edgar/data/0000000004-24-000004.txt"); got != 2 {
		t.Errorf("Expected failed submission to be retried, got %d fetches", got)
	}

	if delta := env.filing(t, "0000000004-24-000004"); delta.Attempts != 2 {
		t.Errorf("Expected 2 attempts for DELTA, got %d", delta.Attempts)
	}
}

func TestProcessFeedTask_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	feedConfig := &feed.Config{
		Name:     "broken",
		URL:      server.URL,
		Settings: feed.ConfigSettings{Enabled: true, Timeout: 5},
	}

	task := NewProcessFeedTask("broken", feedConfig, server.Client(), feed.NewParser(), feed.NewFilterer(), nil, nil, testUserAgent)
	err := task.Execute(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected HTTP 503 error, got %v", err)
	}
}

func TestProcessFeedTask_DisabledFeed(t *testing.T) {
	feedConfig := &feed.Config{Name: "off", URL: "http://127.0.0.1:0/never"}

	task := NewProcessFeedTask("off", feedConfig, http.DefaultClient, feed.NewParser(), feed.NewFilterer(), nil, nil, testUserAgent)
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected disabled feed to be skipped, got %v", err)
	}
}

func TestTask_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewSyncFeedConfigTask("test", &feed.Config{Name: "test"}, nil)
	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestNewTask(t *testing.T) {
	first := NewTask(TaskTypeProcessFeed, "test")
	second := NewTask(TaskTypeProcessFeed, "test")

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("Expected unique task IDs, got %q and %q", first.ID, second.ID)
	}
	if first.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got %d", DefaultMaxRetries, first.GetMaxRetries())
	}
	if first.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !first.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		first.IncrementRetryCount()
	}
	if first.CanRetry() {
		t.Error("Expected no retries left")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.retryCount); got != tt.want {
			t.Errorf("Expected delay %v for retry %d, got %v", tt.want, tt.retryCount, got)
		}
	}
}

func TestScheduler_EnqueueTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{ctx: ctx, cancel: cancel, taskQueue: make(chan TaskInterface, 1)}

	task := NewSyncFeedConfigTask("test", &feed.Config{Name: "test"}, nil)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("Expected first task to be queued, got %v", err)
	}
	if err := s.EnqueueTask(task); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	cancel()
	<-s.taskQueue
	if err := s.EnqueueTask(task); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after stop, got %v", err)
	}
}

func TestScheduler_EnqueueExtractionUnknownFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 1),
		configCache: feed.NewConfigCache(t.TempDir()),
	}

	if err := s.EnqueueExtraction("missing"); err == nil {
		t.Error("Expected error for unknown feed")
	}
}
