// -----------------------------------------------------------------------
// Job API - create, poll and inspect event search jobs
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/categories"
	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/services/worker"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
)

// Job dates are accepted from one year back to three years forward.
const (
	maxDateBack    = 365
	maxDateForward = 3 * 365
)

// JobHandler handles job-related API requests
type JobHandler struct {
	jobStorage interfaces.JobStorage
	worker     *worker.Worker
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, w *worker.Worker, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStorage: jobStorage,
		worker:     w,
		validate:   validator.New(),
		logger:     logger,
	}
}

type createJobRequest struct {
	City       string   `json:"city" validate:"required,max=100"`
	Date       string   `json:"date" validate:"required"`
	Categories []string `json:"categories" validate:"omitempty,max=25,dive,required"`
	Debug      bool     `json:"debug"`
}

// CreateJobHandler accepts a new event search job and starts processing it
// out of band.
// POST /api/search-jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.City = strings.TrimSpace(req.City)
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}
	if err := validateJobDate(req.Date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cats := categories.NormalizeAll(req.Categories)
	if len(cats) == 0 {
		cats = categories.Canonical()
	}

	job := &models.EventSearchJob{
		ID:         common.NewJobID(),
		City:       req.City,
		Date:       req.Date,
		Categories: cats,
		Status:     models.JobStatusPending,
		Debug:      req.Debug,
		CreatedAt:  time.Now(),
	}

	ctx := r.Context()
	if err := h.jobStorage.SaveJob(ctx, job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save job")
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("city", job.City).
		Str("date", job.Date).
		Int("categories", len(job.Categories)).
		Msg("Job created")

	// Processing happens out of band; the client polls for status.
	go func() {
		if err := h.worker.Process(context.Background(), job.ID); err != nil {
			h.logger.Error().Err(err).Str("job_id", job.ID).Msg("Job processing failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"categories": job.Categories,
	})
}

// validateJobDate checks format and the accepted date window.
func validateJobDate(date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return errBadDate
	}
	now := time.Now()
	if day.Before(now.AddDate(0, 0, -maxDateBack)) || day.After(now.AddDate(0, 0, maxDateForward)) {
		return errDateOutOfRange
	}
	return nil
}

// GetJobHandler returns the current state of one job. The response always
// includes the accumulated events so clients can render progressively
// while the job is still running.
// GET /api/search-jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobStorage.GetJob(r.Context(), jobID)
	if err != nil {
		if err == interfaces.ErrJobNotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// ListJobsHandler returns a paginated job list.
// GET /api/search-jobs?limit=50&offset=0&status=done
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	opts := &interfaces.JobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	jobs, err := h.jobStorage.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// GetJobDebugHandler returns the raw provider exchanges captured for a job
// created with the debug flag.
// GET /api/search-jobs/{id}/debug
func (h *JobHandler) GetJobDebugHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	if _, err := h.jobStorage.GetJob(r.Context(), jobID); err != nil {
		if err == interfaces.ErrJobNotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	records, err := h.jobStorage.GetDebugInfo(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get debug info")
		writeError(w, http.StatusInternalServerError, "failed to get debug info")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id":  jobID,
		"records": records,
	})
}

// DeleteJobHandler removes a job and its debug records.
// DELETE /api/search-jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := pathSegment(r.URL.Path, 2)
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	if err := h.jobStorage.DeleteJob(r.Context(), jobID); err != nil {
		if err == interfaces.ErrJobNotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JobStatsHandler returns job counts per status.
// GET /api/search-jobs/stats
func (h *JobHandler) JobStatsHandler(w http.ResponseWriter, r *http.Request) {
	statuses := []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusDone,
		models.JobStatusPartial,
		models.JobStatusEmpty,
		models.JobStatusFailed,
	}

	counts := make(map[string]int, len(statuses))
	total := 0
	for _, status := range statuses {
		count, err := h.jobStorage.CountJobsByStatus(r.Context(), status)
		if err != nil {
			h.logger.Error().Err(err).Str("status", string(status)).Msg("Failed to count jobs")
			writeError(w, http.StatusInternalServerError, "failed to count jobs")
			return
		}
		counts[string(status)] = count
		total += count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total":      total,
		"by_status":  counts,
		"categories": categories.Canonical(),
	})
}
