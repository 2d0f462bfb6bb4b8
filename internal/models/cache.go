// -----------------------------------------------------------------------
// Cache entry envelope, structured cache keys and TTL computation
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
	"time"
)

// TTL clamps for cache writes. The floor avoids thrashing on near-expired
// writes; the ceiling bounds cache growth for far-future dates.
const (
	MinCacheTTL = 60 * time.Second
	MaxCacheTTL = 7 * 24 * time.Hour
)

// CacheKey identifies a cache entry by its component fields. City and
// category are normalized once at serialization time; nothing ever parses
// the serialized form back apart.
type CacheKey struct {
	City     string
	Date     string // YYYY-MM-DD
	Category string // empty for day buckets
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}

// Shard returns the storage key for a per-category shard.
func (k CacheKey) Shard() string {
	return fmt.Sprintf("shard:%s:%s:%s", normalizeKeyPart(k.City), k.Date, normalizeKeyPart(k.Category))
}

// Bucket returns the storage key for the city+date day bucket.
func (k CacheKey) Bucket() string {
	return fmt.Sprintf("day:%s:%s", normalizeKeyPart(k.City), k.Date)
}

// CategoryShard is the cached payload for one city+date+category.
type CategoryShard struct {
	Records []EventRecord `json:"records"`
}

// DayBucket is the merged event list for one city+date across all
// categories, with provenance-merged source tags per record.
type DayBucket struct {
	Records   []EventRecord `json:"records"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CacheEntry is the envelope persisted for every cache shape.
type CacheEntry struct {
	Key        string    `json:"key" badgerhold:"key"`
	Data       []byte    `json:"data"`
	StoredAt   time.Time `json:"stored_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// Expired reports whether the entry's TTL has elapsed.
func (c *CacheEntry) Expired(now time.Time) bool {
	return now.After(c.StoredAt.Add(time.Duration(c.TTLSeconds) * time.Second))
}

// ComputeTTL derives how long a shard or bucket write stays temporally
// valid: the latest effective end across records, never earlier than the
// end of the requested day, measured from now, clamped to
// [MinCacheTTL, MaxCacheTTL].
func ComputeTTL(records []EventRecord, date string, now time.Time) time.Duration {
	latest := time.Time{}
	if day, err := time.ParseInLocation(DateLayout, date, time.Local); err == nil {
		latest = EndOfDay(day)
	}

	for _, rec := range records {
		if end := rec.EffectiveEnd(); end.After(latest) {
			latest = end
		}
	}

	ttl := latest.Sub(now)
	if ttl < MinCacheTTL {
		return MinCacheTTL
	}
	if ttl > MaxCacheTTL {
		return MaxCacheTTL
	}
	return ttl
}
