package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func TestCategoryShardRoundTrip(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	date := futureDate(2)
	key := models.CacheKey{City: "Wien", Date: date, Category: "Clubs/Discos"}
	records := []models.EventRecord{
		{Title: "Nachtschicht", Venue: "Grelle Forelle", Date: date, StartTime: "23:00", Source: models.SourceProvider},
		{Title: "House Friday", Venue: "Flex", Date: date, Source: models.SourceProvider},
	}

	if err := cache.SetCategoryShard(ctx, key, records, time.Hour); err != nil {
		t.Fatalf("SetCategoryShard failed: %v", err)
	}

	got, err := cache.GetCategoryShard(ctx, key)
	if err != nil {
		t.Fatalf("GetCategoryShard failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	if got[0].Title != "Nachtschicht" {
		t.Errorf("Expected first record Nachtschicht, got %q", got[0].Title)
	}
}

func TestCategoryShardMiss(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())

	key := models.CacheKey{City: "Wien", Date: futureDate(1), Category: "Sport"}
	_, err := cache.GetCategoryShard(context.Background(), key)
	if err != interfaces.ErrKeyNotFound {
		t.Fatalf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestExpiredShardIsMissAndDeleted(t *testing.T) {
	db := openTestDB(t)
	cache := &EventCacheStorage{db: db, logger: arbor.NewLogger(), now: time.Now}
	ctx := context.Background()

	date := futureDate(1)
	key := models.CacheKey{City: "Wien", Date: date, Category: "Theater"}
	records := []models.EventRecord{{Title: "Faust", Venue: "Burgtheater", Date: date}}

	if err := cache.SetCategoryShard(ctx, key, records, time.Hour); err != nil {
		t.Fatal(err)
	}

	// Move the clock past the entry's TTL.
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := cache.GetCategoryShard(ctx, key); err != interfaces.ErrKeyNotFound {
		t.Fatalf("Expected ErrKeyNotFound for expired entry, got %v", err)
	}

	// The expired entry must have been removed from the store.
	var entry models.CacheEntry
	if err := db.Store().Get(key.Shard(), &entry); err != badgerhold.ErrNotFound {
		t.Fatalf("Expected expired entry to be deleted, got %v", err)
	}
}

func TestCorruptedEntryIsMissAndDeleted(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	key := models.CacheKey{City: "Wien", Date: futureDate(1), Category: "Kino"}
	entry := models.CacheEntry{
		Key:        key.Shard(),
		Data:       []byte("{not json"),
		StoredAt:   time.Now(),
		TTLSeconds: 3600,
	}
	if err := db.Store().Upsert(entry.Key, &entry); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.GetCategoryShard(ctx, key); err != interfaces.ErrCacheCorrupted {
		t.Fatalf("Expected ErrCacheCorrupted, got %v", err)
	}

	var check models.CacheEntry
	if err := db.Store().Get(key.Shard(), &check); err != badgerhold.ErrNotFound {
		t.Fatalf("Expected corrupted entry to be deleted, got %v", err)
	}
}

func TestDayBucketUpsertMergesProvenance(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	date := futureDate(2)
	key := models.CacheKey{City: "Wien", Date: date}

	first := []models.EventRecord{
		{Title: "Jazz Abend", Venue: "Porgy & Bess", Date: date, StartTime: "20:00", Source: models.SourceProvider},
	}
	if err := cache.UpsertDayBucket(ctx, key, first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// Same event again from a different source, plus a new one.
	second := []models.EventRecord{
		{Title: "jazz abend", Venue: "Porgy & Bess", Date: date, StartTime: "20:00", Source: models.SourceScraper},
		{Title: "Open Air Kino", Venue: "Karlsplatz", Date: date, Source: models.SourceScraper},
	}
	if err := cache.UpsertDayBucket(ctx, key, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	bucket, err := cache.GetDayBucket(ctx, key)
	if err != nil {
		t.Fatalf("GetDayBucket failed: %v", err)
	}
	if len(bucket.Records) != 2 {
		t.Fatalf("Expected 2 merged records, got %d", len(bucket.Records))
	}

	var jazz *models.EventRecord
	for i := range bucket.Records {
		if bucket.Records[i].Venue == "Porgy & Bess" {
			jazz = &bucket.Records[i]
		}
	}
	if jazz == nil {
		t.Fatal("Merged jazz record not found")
	}
	if jazz.Source != "provider,scraper" {
		t.Errorf("Expected provenance union provider,scraper, got %q", jazz.Source)
	}
}

func TestDayBucketSurvivesCorruptedPredecessor(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	date := futureDate(1)
	key := models.CacheKey{City: "Graz", Date: date}

	bad := models.CacheEntry{
		Key:        key.Bucket(),
		Data:       []byte("garbage"),
		StoredAt:   time.Now(),
		TTLSeconds: 3600,
	}
	if err := db.Store().Upsert(bad.Key, &bad); err != nil {
		t.Fatal(err)
	}

	records := []models.EventRecord{{Title: "Lendwirbel", Venue: "Lendplatz", Date: date, Source: models.SourceProvider}}
	if err := cache.UpsertDayBucket(ctx, key, records); err != nil {
		t.Fatalf("Upsert over corrupted entry failed: %v", err)
	}

	bucket, err := cache.GetDayBucket(ctx, key)
	if err != nil {
		t.Fatalf("GetDayBucket failed: %v", err)
	}
	if len(bucket.Records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(bucket.Records))
	}
}

func TestGetEventsByCategoriesSplitsHitsAndMisses(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	date := futureDate(2)
	city := "Wien"

	hitKey := models.CacheKey{City: city, Date: date, Category: "Live-Konzerte"}
	records := []models.EventRecord{{Title: "Symphonic Night", Venue: "Konzerthaus", Date: date, Source: models.SourceProvider}}
	if err := cache.SetCategoryShard(ctx, hitKey, records, time.Hour); err != nil {
		t.Fatal(err)
	}

	// An empty shard does not count as warm; the category must be fetched.
	emptyKey := models.CacheKey{City: city, Date: date, Category: "Sport"}
	if err := cache.SetCategoryShard(ctx, emptyKey, nil, time.Hour); err != nil {
		t.Fatal(err)
	}

	result, err := cache.GetEventsByCategories(ctx, city, date, []string{"Live-Konzerte", "Sport", "Theater"})
	if err != nil {
		t.Fatalf("GetEventsByCategories failed: %v", err)
	}

	if len(result.Cached) != 1 {
		t.Errorf("Expected 1 cached category, got %d", len(result.Cached))
	}
	if len(result.Cached["Live-Konzerte"]) != 1 {
		t.Errorf("Expected 1 record for Live-Konzerte, got %d", len(result.Cached["Live-Konzerte"]))
	}
	if len(result.Missing) != 2 {
		t.Fatalf("Expected 2 missing categories, got %v", result.Missing)
	}
	if result.Missing[0] != "Sport" || result.Missing[1] != "Theater" {
		t.Errorf("Expected Missing=[Sport Theater], got %v", result.Missing)
	}
}

func TestEntryEnvelopeShape(t *testing.T) {
	db := openTestDB(t)
	cache := NewEventCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	date := futureDate(1)
	key := models.CacheKey{City: "Linz", Date: date, Category: "Kino"}
	if err := cache.SetCategoryShard(ctx, key, []models.EventRecord{{Title: "Premiere", Date: date}}, 30*time.Minute); err != nil {
		t.Fatal(err)
	}

	var entry models.CacheEntry
	if err := db.Store().Get(key.Shard(), &entry); err != nil {
		t.Fatalf("Raw entry lookup failed: %v", err)
	}
	if entry.TTLSeconds != 1800 {
		t.Errorf("Expected TTLSeconds=1800, got %d", entry.TTLSeconds)
	}

	var shard models.CategoryShard
	if err := json.Unmarshal(entry.Data, &shard); err != nil {
		t.Fatalf("Envelope payload is not valid JSON: %v", err)
	}
	if len(shard.Records) != 1 || shard.Records[0].Title != "Premiere" {
		t.Errorf("Unexpected payload: %+v", shard.Records)
	}
}
