package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.EventSearchJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.EventSearchJob, error) {
	var job models.EventSearchJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) UpdateJob(ctx context.Context, job *models.EventSearchJob) error {
	return s.SaveJob(ctx, job)
}

func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.EventSearchJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrJobNotFound
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}

	// Debug records ride along with the job's lifetime.
	if err := s.deleteDebugRecords(jobID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to delete debug records")
	}
	return nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.EventSearchJob, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(models.JobStatus(opts.Status))
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.EventSearchJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.EventSearchJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.EventSearchJob{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

// CleanupOldJobs deletes jobs created before the retention cutoff and
// returns how many were removed.
func (s *JobStorage) CleanupOldJobs(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	var old []models.EventSearchJob
	if err := s.db.Store().Find(&old, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find old jobs: %w", err)
	}

	deleted := 0
	for i := range old {
		if err := s.DeleteJob(ctx, old[i].ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", old[i].ID).Msg("Failed to delete old job")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Cleaned up old jobs")
	}
	return deleted, nil
}

func (s *JobStorage) SaveDebugRecord(ctx context.Context, rec *models.DebugRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("debug record ID is required")
	}
	if err := s.db.Store().Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to save debug record: %w", err)
	}
	return nil
}

func (s *JobStorage) GetDebugInfo(ctx context.Context, jobID string) ([]models.DebugRecord, error) {
	var records []models.DebugRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to get debug records: %w", err)
	}
	return records, nil
}

func (s *JobStorage) deleteDebugRecords(jobID string) error {
	return s.db.Store().DeleteMatching(&models.DebugRecord{}, badgerhold.Where("JobID").Eq(jobID))
}
