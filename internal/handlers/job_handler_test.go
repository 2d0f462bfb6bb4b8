package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/services/worker"
	"github.com/eventscout/eventscout/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// stubProvider always answers the same canned text.
type stubProvider struct {
	response string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

func newTestEnv(t *testing.T, providerResponse string) (*JobHandler, *EventHandler, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { storage.Close() })

	cfg := &common.WorkerConfig{
		MaxAttempts:    1,
		RetryDelay:     time.Millisecond,
		Concurrency:    3,
		RequestTimeout: time.Second,
	}
	w := worker.NewWorker(storage, &stubProvider{response: providerResponse}, cfg, logger)

	return NewJobHandler(storage.Jobs(), w, logger), NewEventHandler(storage.EventCache(), logger), storage
}

func postJSON(t *testing.T, handler http.HandlerFunc, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateJobValidation(t *testing.T) {
	jobHandler, _, _ := newTestEnv(t, "No events found.")
	futureDate := time.Now().AddDate(0, 1, 0).Format(models.DateLayout)

	tests := []struct {
		name string
		body string
	}{
		{"missing city", `{"date":"` + futureDate + `"}`},
		{"blank city", `{"city":"   ","date":"` + futureDate + `"}`},
		{"missing date", `{"city":"Wien"}`},
		{"malformed date", `{"city":"Wien","date":"01.06.2025"}`},
		{"date too far back", `{"city":"Wien","date":"2019-01-01"}`},
		{"date too far forward", `{"city":"Wien","date":"2099-01-01"}`},
		{"invalid JSON", `{"city":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, jobHandler.CreateJobHandler, "/api/search-jobs", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateJobNormalizesCategoriesAndCompletes(t *testing.T) {
	jobHandler, _, storage := newTestEnv(t, "No events found.")
	futureDate := time.Now().AddDate(0, 0, 7).Format(models.DateLayout)

	body := `{"city":"Wien","date":"` + futureDate + `","categories":["techno","TECHNO","konzerte"]}`
	rec := postJSON(t, jobHandler.CreateJobHandler, "/api/search-jobs", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID      string   `json:"job_id"`
		Status     string   `json:"status"`
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.JobID, "job_") {
		t.Errorf("Unexpected job id %q", resp.JobID)
	}
	if resp.Status != string(models.JobStatusPending) {
		t.Errorf("Expected pending, got %s", resp.Status)
	}
	// Aliases collapse to canonical categories, duplicates removed.
	if len(resp.Categories) != 2 {
		t.Fatalf("Expected 2 normalized categories, got %v", resp.Categories)
	}
	if resp.Categories[0] != "Electronic Music" || resp.Categories[1] != "Live-Konzerte" {
		t.Errorf("Unexpected categories %v", resp.Categories)
	}

	// Processing runs out of band; poll until terminal.
	deadline := time.Now().Add(5 * time.Second)
	var job *models.EventSearchJob
	for time.Now().Before(deadline) {
		var err error
		job, err = storage.Jobs().GetJob(context.Background(), resp.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !job.Status.IsTerminal() {
		t.Fatalf("Job never reached a terminal status, last %s", job.Status)
	}
	if job.Status != models.JobStatusEmpty {
		t.Errorf("Expected empty (provider said no events), got %s", job.Status)
	}
}

func TestGetJobNotFound(t *testing.T) {
	jobHandler, _, _ := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/search-jobs/job_missing", nil)
	rec := httptest.NewRecorder()
	jobHandler.GetJobHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestGetJobReturnsEventsWhileRunning(t *testing.T) {
	jobHandler, _, storage := newTestEnv(t, "")

	job := &models.EventSearchJob{
		ID:     "job_1717200000010_progress",
		City:   "Wien",
		Date:   "2025-06-01",
		Status: models.JobStatusRunning,
		Events: []models.EventRecord{
			{Title: "Jazz Night", Category: "Live-Konzerte", Date: "2025-06-01", Source: models.SourceProvider},
		},
		CreatedAt: time.Now(),
	}
	if err := storage.Jobs().SaveJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/search-jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	jobHandler.GetJobHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var got models.EventSearchJob
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.JobStatusRunning {
		t.Errorf("Expected running, got %s", got.Status)
	}
	if len(got.Events) != 1 {
		t.Errorf("Expected accumulated events in running job, got %d", len(got.Events))
	}
}

func TestJobStats(t *testing.T) {
	jobHandler, _, storage := newTestEnv(t, "")
	ctx := context.Background()

	for i, status := range []models.JobStatus{models.JobStatusDone, models.JobStatusDone, models.JobStatusFailed} {
		job := &models.EventSearchJob{
			ID:        "job_171720000002" + string(rune('0'+i)) + "_statstat",
			City:      "Wien",
			Date:      "2025-06-01",
			Status:    status,
			CreatedAt: time.Now(),
		}
		if err := storage.Jobs().SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/search-jobs/stats", nil)
	rec := httptest.NewRecorder()
	jobHandler.JobStatsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 {
		t.Errorf("Expected total 3, got %d", resp.Total)
	}
	if resp.ByStatus["done"] != 2 || resp.ByStatus["failed"] != 1 {
		t.Errorf("Unexpected status counts: %v", resp.ByStatus)
	}
}
