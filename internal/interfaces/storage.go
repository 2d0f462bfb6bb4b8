package interfaces

import (
	"context"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// CachedCategories is the warm-start view the job worker reads before
// dispatching provider fetches.
type CachedCategories struct {
	// Cached maps canonical category to its unexpired, valid-now records.
	Cached map[string][]models.EventRecord
	// Missing lists the requested categories with no usable shard.
	Missing []string
}

// EventCacheStorage is the layered event cache: per-category shards plus an
// aggregated per-day bucket, each entry carrying a content-derived TTL.
type EventCacheStorage interface {
	GetCategoryShard(ctx context.Context, key models.CacheKey) ([]models.EventRecord, error)
	SetCategoryShard(ctx context.Context, key models.CacheKey, records []models.EventRecord, ttl time.Duration) error

	GetDayBucket(ctx context.Context, key models.CacheKey) (*models.DayBucket, error)
	UpsertDayBucket(ctx context.Context, key models.CacheKey, incoming []models.EventRecord) error

	GetEventsByCategories(ctx context.Context, city, date string, categories []string) (*CachedCategories, error)
}

// JobListOptions filters job listings.
type JobListOptions struct {
	Status string
	Limit  int
	Offset int
}

// JobStorage persists event search job lifecycle records.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.EventSearchJob) error
	GetJob(ctx context.Context, jobID string) (*models.EventSearchJob, error)
	UpdateJob(ctx context.Context, job *models.EventSearchJob) error
	DeleteJob(ctx context.Context, jobID string) error

	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.EventSearchJob, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)

	// CleanupOldJobs removes jobs older than the retention window and
	// returns how many were deleted. Logically a lazy sweep.
	CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error)

	SaveDebugRecord(ctx context.Context, rec *models.DebugRecord) error
	GetDebugInfo(ctx context.Context, jobID string) ([]models.DebugRecord, error)
}

// StorageManager wires the storage backends.
type StorageManager interface {
	EventCache() EventCacheStorage
	Jobs() JobStorage

	// RunGC reclaims disk space left behind by expired cache entries.
	RunGC() error

	Close() error
}
