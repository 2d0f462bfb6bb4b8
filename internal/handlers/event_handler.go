// -----------------------------------------------------------------------
// Events API - cached day reads and scraper ingestion
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/categories"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
)

// EventHandler serves cached events and accepts scraper-sourced records
type EventHandler struct {
	cache    interfaces.EventCacheStorage
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewEventHandler creates a new event handler
func NewEventHandler(cache interfaces.EventCacheStorage, logger arbor.ILogger) *EventHandler {
	return &EventHandler{
		cache:    cache,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetEventsHandler returns the merged, currently valid event list for one
// city and date, optionally filtered by category. Served from the day
// bucket when present, otherwise assembled from whatever category shards
// exist. Responses are marked no-store; freshness is the cache's own
// responsibility.
// GET /api/events?city=Wien&date=2025-06-01&category=Sport
func (h *EventHandler) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	date := r.URL.Query().Get("date")
	category := r.URL.Query().Get("category")

	if city == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}
	if _, err := time.ParseInLocation(models.DateLayout, date, time.Local); err != nil {
		writeError(w, http.StatusBadRequest, errBadDate.Error())
		return
	}

	ctx := r.Context()
	key := models.CacheKey{City: city, Date: date}

	var records []models.EventRecord
	bucket, err := h.cache.GetDayBucket(ctx, key)
	switch err {
	case nil:
		records = bucket.Records
	case interfaces.ErrKeyNotFound, interfaces.ErrCacheCorrupted:
		// No bucket: fall back to merging whatever shards exist.
		warm, cacheErr := h.cache.GetEventsByCategories(ctx, city, date, categories.Canonical())
		if cacheErr != nil {
			h.logger.Error().Err(cacheErr).Msg("Failed to read category shards")
			writeError(w, http.StatusInternalServerError, "failed to read events")
			return
		}
		for _, shard := range warm.Cached {
			records = models.MergeRecords(records, shard)
		}
	default:
		h.logger.Error().Err(err).Msg("Failed to read day bucket")
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	if category != "" {
		records = models.FilterByCategory(records, categories.Normalize(category))
	}
	if records == nil {
		records = []models.EventRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"city":   city,
		"date":   date,
		"count":  len(records),
		"events": records,
	})
}

type ingestRequest struct {
	City   string               `json:"city" validate:"required,max=100"`
	Date   string               `json:"date" validate:"required"`
	Events []models.EventRecord `json:"events" validate:"required,min=1,dive"`
}

// IngestEventsHandler merges scraper-sourced records into the cache, both
// per-category shards and the day bucket. Upserts are idempotent; replayed
// batches only union provenance.
// POST /api/events/ingest
func (h *EventHandler) IngestEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
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

	ctx := r.Context()
	now := time.Now()

	// Normalize and group by canonical category for shard merges.
	byCategory := make(map[string][]models.EventRecord)
	prepared := make([]models.EventRecord, 0, len(req.Events))
	for _, rec := range req.Events {
		if strings.TrimSpace(rec.Title) == "" {
			continue
		}
		rec.Category = categories.Normalize(rec.Category)
		if strings.TrimSpace(rec.Date) == "" {
			rec.Date = req.Date
		}
		rec.Source = models.SourceScraper
		prepared = append(prepared, rec)
		if rec.Category != "" {
			byCategory[rec.Category] = append(byCategory[rec.Category], rec)
		}
	}
	if len(prepared) == 0 {
		writeError(w, http.StatusBadRequest, "no usable events in batch")
		return
	}

	for category, incoming := range byCategory {
		key := models.CacheKey{City: req.City, Date: req.Date, Category: category}

		existing, err := h.cache.GetCategoryShard(ctx, key)
		if err != nil && err != interfaces.ErrKeyNotFound && err != interfaces.ErrCacheCorrupted {
			h.logger.Error().Err(err).Str("category", category).Msg("Failed to read shard for ingest")
			writeError(w, http.StatusInternalServerError, "failed to ingest events")
			return
		}

		merged := models.MergeRecords(existing, incoming)
		ttl := models.ComputeTTL(merged, req.Date, now)
		if err := h.cache.SetCategoryShard(ctx, key, merged, ttl); err != nil {
			h.logger.Error().Err(err).Str("category", category).Msg("Failed to store shard for ingest")
			writeError(w, http.StatusInternalServerError, "failed to ingest events")
			return
		}
	}

	bucketKey := models.CacheKey{City: req.City, Date: req.Date}
	if err := h.cache.UpsertDayBucket(ctx, bucketKey, prepared); err != nil {
		h.logger.Error().Err(err).Msg("Failed to upsert day bucket for ingest")
		writeError(w, http.StatusInternalServerError, "failed to ingest events")
		return
	}

	h.logger.Info().
		Str("city", req.City).
		Str("date", req.Date).
		Int("events", len(prepared)).
		Int("categories", len(byCategory)).
		Msg("Ingested scraper events")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ingested":   len(prepared),
		"categories": len(byCategory),
	})
}
