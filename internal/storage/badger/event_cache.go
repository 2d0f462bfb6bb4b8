package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// EventCacheStorage implements the EventCacheStorage interface for Badger.
// Every value is wrapped in a CacheEntry envelope so shards and day buckets
// share one expiry mechanism.
type EventCacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewEventCacheStorage creates a new EventCacheStorage instance
func NewEventCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EventCacheStorage {
	return &EventCacheStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// getEntry loads and unwraps a cache envelope. Expired entries are deleted
// and reported as misses; undecodable payloads are deleted and reported as
// ErrCacheCorrupted so callers can treat them as misses too.
func (s *EventCacheStorage) getEntry(storageKey string, payload interface{}) error {
	var entry models.CacheEntry
	err := s.db.Store().Get(storageKey, &entry)
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.Expired(s.now()) {
		if err := s.db.Store().Delete(storageKey, &models.CacheEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("key", storageKey).Msg("Failed to delete expired cache entry")
		}
		return interfaces.ErrKeyNotFound
	}

	if err := json.Unmarshal(entry.Data, payload); err != nil {
		s.logger.Warn().Err(err).Str("key", storageKey).Msg("Dropping corrupted cache entry")
		if delErr := s.db.Store().Delete(storageKey, &models.CacheEntry{}); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", storageKey).Msg("Failed to delete corrupted cache entry")
		}
		return interfaces.ErrCacheCorrupted
	}

	return nil
}

func (s *EventCacheStorage) putEntry(storageKey string, payload interface{}, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	entry := models.CacheEntry{
		Key:        storageKey,
		Data:       data,
		StoredAt:   s.now(),
		TTLSeconds: int(ttl.Seconds()),
	}

	if err := s.db.Store().Upsert(storageKey, &entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// GetCategoryShard returns the unexpired, still-valid records for one
// city+date+category. Records whose effective end has passed are filtered
// out on read even when the entry itself has not expired yet.
func (s *EventCacheStorage) GetCategoryShard(ctx context.Context, key models.CacheKey) ([]models.EventRecord, error) {
	var shard models.CategoryShard
	if err := s.getEntry(key.Shard(), &shard); err != nil {
		return nil, err
	}
	return models.FilterValidNow(shard.Records, s.now()), nil
}

// SetCategoryShard overwrites the shard for one city+date+category.
func (s *EventCacheStorage) SetCategoryShard(ctx context.Context, key models.CacheKey, records []models.EventRecord, ttl time.Duration) error {
	shard := models.CategoryShard{Records: records}
	if err := s.putEntry(key.Shard(), &shard, ttl); err != nil {
		return err
	}

	s.logger.Debug().
		Str("key", key.Shard()).
		Int("records", len(records)).
		Str("ttl", ttl.String()).
		Msg("Stored category shard")
	return nil
}

// GetDayBucket returns the merged city+date bucket, valid-now filtered.
func (s *EventCacheStorage) GetDayBucket(ctx context.Context, key models.CacheKey) (*models.DayBucket, error) {
	var bucket models.DayBucket
	if err := s.getEntry(key.Bucket(), &bucket); err != nil {
		return nil, err
	}
	bucket.Records = models.FilterValidNow(bucket.Records, s.now())
	return &bucket, nil
}

// UpsertDayBucket merges incoming records into the existing day bucket.
// The merge is key-based and provenance-unioning, and the entry TTL is
// recomputed from the merged record set so a bucket never outlives its
// latest event.
func (s *EventCacheStorage) UpsertDayBucket(ctx context.Context, key models.CacheKey, incoming []models.EventRecord) error {
	var existing []models.EventRecord

	var bucket models.DayBucket
	err := s.getEntry(key.Bucket(), &bucket)
	switch err {
	case nil:
		existing = bucket.Records
	case interfaces.ErrKeyNotFound, interfaces.ErrCacheCorrupted:
		// Treated as an empty bucket.
	default:
		return err
	}

	now := s.now()
	merged := models.MergeRecords(existing, incoming)
	merged = models.FilterValidNow(merged, now)

	updated := models.DayBucket{
		Records:   merged,
		UpdatedAt: now,
	}

	ttl := models.ComputeTTL(merged, key.Date, now)
	if err := s.putEntry(key.Bucket(), &updated, ttl); err != nil {
		return err
	}

	s.logger.Debug().
		Str("key", key.Bucket()).
		Int("incoming", len(incoming)).
		Int("merged", len(merged)).
		Str("ttl", ttl.String()).
		Msg("Upserted day bucket")
	return nil
}

// GetEventsByCategories resolves each requested category against its shard
// and splits the result into cached hits and misses. A category counts as
// cached only when its shard is unexpired and still holds valid records;
// corrupted entries count as misses.
func (s *EventCacheStorage) GetEventsByCategories(ctx context.Context, city, date string, categories []string) (*interfaces.CachedCategories, error) {
	result := &interfaces.CachedCategories{
		Cached: make(map[string][]models.EventRecord),
	}

	for _, category := range categories {
		key := models.CacheKey{City: city, Date: date, Category: category}
		records, err := s.GetCategoryShard(ctx, key)
		switch {
		case err == nil && len(records) > 0:
			result.Cached[category] = records
		case err == nil, err == interfaces.ErrKeyNotFound, err == interfaces.ErrCacheCorrupted:
			result.Missing = append(result.Missing, category)
		default:
			return nil, err
		}
	}

	return result, nil
}
