package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/cfg"
	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
	"github.com/MegaManSec/SEC-Feed-Parser/app/feed"
	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
	"github.com/MegaManSec/SEC-Feed-Parser/app/tasks"
)

const (
	testAPIKey    = "secret"
	testAccession = "0000950170-24-000001"
)

type fakeScheduler struct {
	extractions []string
}

var _ tasks.TaskSchedulerInterface = (*fakeScheduler)(nil)

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return nil
}

func (s *fakeScheduler) EnqueueExtraction(feedName string) error {
	s.extractions = append(s.extractions, feedName)
	return nil
}

type testServer struct {
	router     http.Handler
	filingRepo *database.SQLiteFilingRepository
	scheduler  *fakeScheduler
}

func setupTestServer(t *testing.T, apiAccessKey string) *testServer {
	t.Helper()

	oldArgs := os.Args
	os.Args = []string{"test"}
	t.Cleanup(func() { os.Args = oldArgs })
	t.Setenv("TZ", "UTC")
	if _, err := cfg.Load(); err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	configCache := feed.NewConfigCache(t.TempDir())
	if err := configCache.Run(); err != nil {
		t.Fatalf("Failed to load feed configs: %v", err)
	}

	feedRepo := database.NewFeedRepository(db)
	filingRepo := database.NewFilingRepository(db)

	if err := feedRepo.UpsertFeed(feed.DefaultFeedName, feed.DefaultFeedURL); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	id, err := filingRepo.CreateFiling(feed.DefaultFeedName, database.NewFiling{
		AccessionNumber: testAccession,
		Title:           "8-K - ACME CORP (0000000001) (Filer)",
		Company:         "ACME CORP (0000000001)",
		Link:            "https://www.sec.gov/Archives/edgar/data/1/" + testAccession + "-index.htm",
		SubmissionURL:   "https://www.sec.gov/Archives/edgar/data/1/" + testAccession + ".txt",
		ItemCodes:       []string{"1.05"},
		PublishedAt:     time.Date(2024, 1, 19, 16, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to create filing: %v", err)
	}

	err = filingRepo.SaveResult(id, database.FilingStatusSuccess, &filing.Result{
		Company:   "ACME CORP (0000000001)",
		Items:     []filing.Item{{ID: "1.05", Text: "Unauthorized access was detected."}},
		Signature: "Jane Doe",
		Exhibits:  []filing.Exhibit{{Title: "99.1", Body: "Press release"}},
	}, "")
	if err != nil {
		t.Fatalf("Failed to save result: %v", err)
	}

	scheduler := &fakeScheduler{}
	handler := NewHandler(configCache, feedRepo, filingRepo, scheduler)

	return &testServer{
		router:     NewServer(handler, apiAccessKey),
		filingRepo: filingRepo,
		scheduler:  scheduler,
	}
}

func (s *testServer) do(method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetHealth(t *testing.T) {
	s := setupTestServer(t, "")

	w := s.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["feeds"] != float64(1) {
		t.Errorf("Expected 1 feed, got %v", body["feeds"])
	}
	if body["loaded_configurations"] != float64(1) {
		t.Errorf("Expected 1 loaded configuration, got %v", body["loaded_configurations"])
	}
}

func TestHandler_GetStats(t *testing.T) {
	s := setupTestServer(t, "")

	w := s.do(http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Filings map[string]int `json:"filings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Filings["total"] != 1 || body.Filings["success"] != 1 {
		t.Errorf("Expected one successful filing, got %v", body.Filings)
	}
}

func TestHandler_GetFeed(t *testing.T) {
	s := setupTestServer(t, "")

	w := s.do(http.MethodGet, "/feeds/"+feed.DefaultFeedName, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	if got := w.Header().Get("Content-Type"); got != "application/xml; charset=utf-8" {
		t.Errorf("Expected XML content type, got '%s'", got)
	}
	if got := w.Header().Get("X-Feed-Items"); got != "1" {
		t.Errorf("Expected X-Feed-Items 1, got '%s'", got)
	}
	if !strings.Contains(w.Body.String(), "<description>Item 1.05: Unauthorized access was detected.</description>") {
		t.Errorf("Expected item text in feed, got:\n%s", w.Body.String())
	}

	if w := s.do(http.MethodGet, "/feeds/unknown", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown feed, got %d", w.Code)
	}
}

func TestHandler_GetFilingReport(t *testing.T) {
	s := setupTestServer(t, "")

	w := s.do(http.MethodGet, "/filings/"+testAccession+".txt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	for _, want := range []string{
		"Company: ACME CORP (0000000001)\n",
		"Item: 1.05: Unauthorized access was detected.\n",
		"Signature: Jane Doe\n",
		"Document 99.1: Press release\n",
	} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, w.Body.String())
		}
	}

	if w := s.do(http.MethodGet, "/filings/"+testAccession, ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without .txt suffix, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/filings/0000000000-00-000000.txt", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown filing, got %d", w.Code)
	}
}

func TestServer_APIAuthentication(t *testing.T) {
	s := setupTestServer(t, testAPIKey)

	if w := s.do(http.MethodGet, "/api/filings", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/filings", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/filings", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer token, got %d", w.Code)
	}
}

func TestServer_APIDisabledWithoutKey(t *testing.T) {
	s := setupTestServer(t, "")

	if w := s.do(http.MethodGet, "/api/filings", "anything"); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 when API is disabled, got %d", w.Code)
	}
}

func TestHandler_APIListFilings(t *testing.T) {
	s := setupTestServer(t, testAPIKey)

	w := s.do(http.MethodGet, "/api/filings?status=success", testAPIKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Filings []filingResponse `json:"filings"`
		Total   int              `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Total != 1 || body.Filings[0].AccessionNumber != testAccession {
		t.Errorf("Expected filing %s, got %+v", testAccession, body.Filings)
	}
	if body.Filings[0].Feed != feed.DefaultFeedName {
		t.Errorf("Expected feed '%s', got '%s'", feed.DefaultFeedName, body.Filings[0].Feed)
	}

	if w := s.do(http.MethodGet, "/api/filings?status=bogus", testAPIKey); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid status, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/filings?limit=zero", testAPIKey); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid limit, got %d", w.Code)
	}
}

func TestHandler_APIGetFiling(t *testing.T) {
	s := setupTestServer(t, testAPIKey)

	w := s.do(http.MethodGet, "/api/filings/"+testAccession, testAPIKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body filingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Result == nil {
		t.Fatal("Expected the extraction result to be included")
	}
	if text, _ := body.Result.Item("1.05"); text != "Unauthorized access was detected." {
		t.Errorf("Unexpected item 1.05 text: %q", text)
	}

	if w := s.do(http.MethodGet, "/api/filings/0000000000-00-000000", testAPIKey); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown filing, got %d", w.Code)
	}
}

func TestHandler_APIReextractFiling(t *testing.T) {
	s := setupTestServer(t, testAPIKey)

	w := s.do(http.MethodPost, "/api/filings/"+testAccession+"/reextract", testAPIKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(s.scheduler.extractions) != 1 || s.scheduler.extractions[0] != feed.DefaultFeedName {
		t.Errorf("Expected extraction to be queued for %s, got %v", feed.DefaultFeedName, s.scheduler.extractions)
	}

	f, err := s.filingRepo.GetFiling(testAccession)
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != database.FilingStatusPending || f.Attempts != 0 {
		t.Errorf("Expected filing to be pending with no attempts, got %s with %d", f.Status, f.Attempts)
	}
}
