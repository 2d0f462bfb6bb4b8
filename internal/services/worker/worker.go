// -----------------------------------------------------------------------
// Job worker - end-to-end processing of one event search job
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/categories"
	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/parser"
	"github.com/eventscout/eventscout/internal/services/provider"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// Worker drives one event search job end-to-end: warm-start from cache,
// fan out provider fetches for missing categories, merge results into the
// job record and the cache, and derive the final status.
type Worker struct {
	storage  interfaces.StorageManager
	provider interfaces.SearchProvider
	config   *common.WorkerConfig
	logger   arbor.ILogger
}

// NewWorker creates a new job worker
func NewWorker(storage interfaces.StorageManager, provider interfaces.SearchProvider, config *common.WorkerConfig, logger arbor.ILogger) *Worker {
	return &Worker{
		storage:  storage,
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

// categoryResult carries the outcome of one category fetch back to the
// aggregation step.
type categoryResult struct {
	category string
	records  []models.EventRecord
	err      error
	attempts int
}

// Process runs one job to completion. Invoking it on a job that is already
// running or terminal is a no-op, so duplicate triggers are harmless.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	job, err := w.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status != models.JobStatusPending {
		w.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Job is not pending, skipping")
		return nil
	}

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	for _, category := range job.Categories {
		job.State(category)
	}
	if err := w.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("city", job.City).
		Str("date", job.Date).
		Int("categories", len(job.Categories)).
		Msg("Processing event search job")

	if err := w.run(ctx, job); err != nil {
		// Fatal failure outside the per-category loop. Partial progress
		// stays persisted for diagnostics, the job itself is failed.
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
		completed := time.Now()
		job.CompletedAt = &completed
		if saveErr := w.storage.Jobs().UpdateJob(ctx, job); saveErr != nil {
			w.logger.Error().Err(saveErr).Str("job_id", job.ID).Msg("Failed to persist job failure")
		}
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("Job failed")
		return err
	}

	return nil
}

func (w *Worker) run(ctx context.Context, job *models.EventSearchJob) error {
	// Warm start: categories already cached need no provider fetch.
	warm, err := w.storage.EventCache().GetEventsByCategories(ctx, job.City, job.Date, job.Categories)
	if err != nil {
		return fmt.Errorf("cache warm-start failed: %w", err)
	}

	now := time.Now()
	for category, records := range warm.Cached {
		tagged := make([]models.EventRecord, len(records))
		for i, rec := range records {
			rec.Source = models.MergeSources(rec.Source, models.SourceCache)
			tagged[i] = rec
		}
		job.Events = models.MergeRecords(job.Events, tagged)

		st := job.State(category)
		st.Status = models.CategoryCompleted
		st.StartedAt = &now
		st.CompletedAt = &now
		st.EventCount = len(tagged)

		w.logger.Debug().
			Str("job_id", job.ID).
			Str("category", category).
			Int("events", len(tagged)).
			Msg("Category served from cache")
	}

	job.RecountCategories()
	if err := w.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist warm-start progress: %w", err)
	}

	// Fetch missing categories in bounded batches.
	batchSize := w.config.Concurrency
	if batchSize < 1 {
		batchSize = 1
	}

	missing := warm.Missing
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		if err := w.processBatch(ctx, job, batch); err != nil {
			return err
		}

		// Persist progress so pollers see events while the job runs.
		job.RecountCategories()
		job.Status = models.JobStatusRunning
		if err := w.storage.Jobs().UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist batch progress: %w", err)
		}

		if end < len(missing) && w.config.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.BatchDelay):
			}
		}
	}

	// Final status in one update.
	job.RecountCategories()
	job.Status = models.DeriveStatus(job.CategoryStates)
	completed := time.Now()
	job.CompletedAt = &completed

	if err := w.storage.Jobs().UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist final job state: %w", err)
	}

	w.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("events", len(job.Events)).
		Int("completed", job.CompletedCategories).
		Int("failed", job.FailedCategories).
		Msg("Job finished")

	return nil
}

// processBatch fetches one batch of categories concurrently and merges the
// outcomes into the job record and the cache. Category failures are
// recorded per category and never abort the job. State mutations stay
// in-memory until the caller persists after the batch, so pollers observe
// per-category status, attempts and timestamps at batch granularity.
func (w *Worker) processBatch(ctx context.Context, job *models.EventSearchJob, batch []string) error {
	var mu sync.Mutex
	results := make([]categoryResult, 0, len(batch))

	started := time.Now()
	for _, category := range batch {
		st := job.State(category)
		st.Status = models.CategoryInProgress
		if st.StartedAt == nil {
			st.StartedAt = &started
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, category := range batch {
		g.Go(func() error {
			res := w.fetchCategory(gctx, job, category)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		st := job.State(res.category)
		st.Attempts = res.attempts
		done := time.Now()
		st.CompletedAt = &done

		if res.err != nil {
			st.Status = models.CategoryFailed
			st.Error = res.err.Error()
			w.logger.Warn().
				Str("job_id", job.ID).
				Str("category", res.category).
				Int("attempts", res.attempts).
				Err(res.err).
				Msg("Category failed")
			continue
		}

		st.Status = models.CategoryCompleted
		st.EventCount = len(res.records)
		job.Events = models.MergeRecords(job.Events, res.records)

		if err := w.writeThrough(ctx, job, res.category, res.records); err != nil {
			// Cache unavailability is fatal for the job as a whole.
			return err
		}

		w.logger.Info().
			Str("job_id", job.ID).
			Str("category", res.category).
			Int("events", len(res.records)).
			Msg("Category completed")
	}

	return nil
}

// fetchCategory runs the bounded fetch+parse attempt loop for one category.
func (w *Worker) fetchCategory(ctx context.Context, job *models.EventSearchJob, category string) categoryResult {
	res := categoryResult{category: category}

	maxAttempts := w.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.attempts = attempt

		records, err := w.fetchOnce(ctx, job, category, attempt)
		if err == nil {
			res.records = records
			return res
		}
		lastErr = err

		if attempt < maxAttempts && w.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				res.err = ctx.Err()
				return res
			case <-time.After(w.config.RetryDelay):
			}
		}
	}

	res.err = lastErr
	return res
}

// fetchOnce performs a single provider fetch and parse for one category.
// A non-empty response that yields no structured records is a synthetic
// failure unless the provider explicitly said there are no events.
func (w *Worker) fetchOnce(ctx context.Context, job *models.EventSearchJob, category string, attempt int) ([]models.EventRecord, error) {
	fetchCtx := ctx
	if w.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, w.config.RequestTimeout)
		defer cancel()
	}

	prompt := w.buildPrompt(job, category)
	raw, err := w.provider.Search(fetchCtx, prompt)

	if job.Debug {
		w.saveDebugRecord(ctx, job, category, prompt, raw, attempt)
	}

	if err != nil {
		return nil, fmt.Errorf("provider search failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty provider response")
	}

	result := parser.Parse(raw)
	switch result.Confidence {
	case parser.ConfidenceStructured:
		return w.normalizeRecords(job, category, result.Records), nil
	default:
		// Fallback records are too low-confidence to count as success.
		if parser.SaysNoEvents(raw) {
			return []models.EventRecord{}, nil
		}
		return nil, fmt.Errorf("unparseable provider response")
	}
}

// normalizeRecords canonicalizes categories, fills defaults and tags
// provenance on freshly fetched records.
func (w *Worker) normalizeRecords(job *models.EventSearchJob, category string, records []models.EventRecord) []models.EventRecord {
	out := make([]models.EventRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Category) == "" {
			rec.Category = category
		} else {
			rec.Category = categories.Normalize(rec.Category)
		}
		if strings.TrimSpace(rec.Date) == "" {
			rec.Date = job.Date
		}
		rec.Source = models.SourceProvider
		out = append(out, rec)
	}
	return out
}

// writeThrough stores freshly fetched records in the category shard and
// merges them into the day bucket.
func (w *Worker) writeThrough(ctx context.Context, job *models.EventSearchJob, category string, records []models.EventRecord) error {
	key := models.CacheKey{City: job.City, Date: job.Date, Category: category}

	ttl := models.ComputeTTL(records, job.Date, time.Now())
	if err := w.storage.EventCache().SetCategoryShard(ctx, key, records, ttl); err != nil {
		return fmt.Errorf("failed to store category shard: %w", err)
	}

	if err := w.storage.EventCache().UpsertDayBucket(ctx, key, records); err != nil {
		return fmt.Errorf("failed to upsert day bucket: %w", err)
	}

	return nil
}

func (w *Worker) buildPrompt(job *models.EventSearchJob, category string) string {
	return provider.BuildPrompt(job.City, job.Date, category)
}

func (w *Worker) saveDebugRecord(ctx context.Context, job *models.EventSearchJob, category, prompt, response string, attempt int) {
	rec := &models.DebugRecord{
		ID:        common.NewDebugID(),
		JobID:     job.ID,
		Category:  category,
		Prompt:    prompt,
		Response:  response,
		Provider:  w.provider.Name(),
		Attempt:   attempt,
		CreatedAt: time.Now(),
	}
	if err := w.storage.Jobs().SaveDebugRecord(ctx, rec); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Str("category", category).Msg("Failed to save debug record")
	}
}
